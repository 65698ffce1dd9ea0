package http

import (
	"encoding/json"
	"net/http"

	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
)

type SystemHandler struct {
	indexUsecase usecase.IndexUC
	cacheUsecase usecase.CacheUC
	logger       logger.Logger
}

func NewSystemHandler(indexUsecase usecase.IndexUC, cacheUsecase usecase.CacheUC, logger logger.Logger) *SystemHandler {
	return &SystemHandler{indexUsecase: indexUsecase, cacheUsecase: cacheUsecase, logger: logger}
}

type cacheStatsResponse struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
	Connected bool    `json:"connected"`
}

type invalidateCacheRequest struct {
	Prefix    string `json:"prefix"`
	ProductID int64  `json:"product_id"`
}

// health
//
//	@Summary		Готовность сервиса
//	@Description	Проверяет, что энкодер загружен и активная коллекция индекса доступна
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	map[string]string	"Сервис готов"
//	@Failure		503	{object}	ErrorResponse		"Сервис не готов принимать поисковые запросы"
//	@Router			/health [get]
func (s *SystemHandler) health(w http.ResponseWriter, r *http.Request) {
	if err := s.indexUsecase.Ready(r.Context()); err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cacheStats
//
//	@Summary		Статистика кэша
//	@Description	Возвращает счетчики попаданий и промахов с момента старта сервиса
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	cacheStatsResponse	"Статистика кэша"
//	@Router			/cache/stats [get]
func (s *SystemHandler) cacheStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.cacheUsecase.Stats(r.Context())
	if err != nil {
		s.logger.Warnf("cache stats failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, cacheStatsResponse{
		Hits:      res.Hits,
		Misses:    res.Misses,
		HitRate:   res.HitRate,
		TotalKeys: res.TotalKeys,
		Connected: res.Connected,
	})
}

// invalidateCache
//
//	@Summary		Инвалидация кэша
//	@Description	Удаляет ключи по префиксу (product, embedding, search) либо по конкретному товару
//	@Tags			system
//	@Accept			json
//	@Produce		json
//	@Param			request	body		invalidateCacheRequest	true	"Что инвалидировать"
//	@Success		200		{object}	map[string]int64		"Сколько ключей удалено"
//	@Failure		400		{object}	ErrorResponse			"Ошибка валидации"
//	@Router			/cache/invalidate [post]
func (s *SystemHandler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	var body invalidateCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, e.Wrap(err.Error(), e.ErrMalformedRequest))
		return
	}

	deleted, err := s.cacheUsecase.Invalidate(r.Context(), &usecase.InvalidateCacheReq{
		Prefix:    body.Prefix,
		ProductID: body.ProductID,
	})
	if err != nil {
		s.logger.Warnf("cache invalidation failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
