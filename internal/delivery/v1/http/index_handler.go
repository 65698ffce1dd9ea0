package http

import (
	"net/http"
	"time"

	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/logger"
)

type IndexHandler struct {
	indexUsecase usecase.IndexUC
	logger       logger.Logger
}

func NewIndexHandler(indexUsecase usecase.IndexUC, logger logger.Logger) *IndexHandler {
	return &IndexHandler{indexUsecase: indexUsecase, logger: logger}
}

type rebuildResponse struct {
	Collection string `json:"collection"`
	Points     uint64 `json:"points"`
	TookMs     int64  `json:"took_ms"`
}

type indexStatsResponse struct {
	Backend      string `json:"backend"`
	Collection   string `json:"collection"`
	Points       uint64 `json:"points"`
	VectorSize   uint64 `json:"vector_size"`
	EncoderReady bool   `json:"encoder_ready"`
	IndexReady   bool   `json:"index_ready"`
	BuiltAt      string `json:"built_at,omitempty"`
}

// rebuild
//
//	@Summary		Перестроение поискового индекса
//	@Description	Векторизует весь каталог в новую коллекцию и атомарно переключает поиск на нее.
//	@Description	Старая коллекция продолжает обслуживать запросы до переключения.
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	rebuildResponse	"Итоги перестроения"
//	@Failure		503	{object}	ErrorResponse	"Модель не готова"
//	@Router			/index/rebuild [post]
func (i *IndexHandler) rebuild(w http.ResponseWriter, r *http.Request) {
	res, err := i.indexUsecase.Rebuild(r.Context())
	if err != nil {
		i.logger.Errorf(err, "index rebuild failed")
		WriteError(w, err)
		return
	}

	i.logger.Infof("Index rebuilt: collection %s, %d points in %dms", res.Collection, res.Points, res.TookMs)
	WriteSuccess(w, http.StatusOK, rebuildResponse{
		Collection: res.Collection,
		Points:     res.Points,
		TookMs:     res.TookMs,
	})
}

// stats
//
//	@Summary		Состояние индекса
//	@Description	Возвращает активную коллекцию, число точек и готовность энкодера с индексом
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	indexStatsResponse	"Состояние индекса"
//	@Router			/index/stats [get]
func (i *IndexHandler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := i.indexUsecase.Stats(r.Context())
	if err != nil {
		i.logger.Warnf("index stats failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	body := indexStatsResponse{
		Backend:      res.Backend,
		Collection:   res.Collection,
		Points:       res.Points,
		VectorSize:   res.VectorSize,
		EncoderReady: res.EncoderReady,
		IndexReady:   res.IndexReady,
	}
	if !res.BuiltAt.IsZero() {
		body.BuiltAt = res.BuiltAt.UTC().Format(time.RFC3339)
	}

	WriteSuccess(w, http.StatusOK, body)
}
