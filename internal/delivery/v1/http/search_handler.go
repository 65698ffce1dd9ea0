package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

type searchRequest struct {
	Text            string   `json:"text"`
	ImageBase64     string   `json:"image_base64"`
	Weight          *float64 `json:"weight"`
	TopK            *int     `json:"top_k"`
	Method          string   `json:"method"`
	Category        string   `json:"category"`
	PriceMin        *int64   `json:"price_min"` // в копейках
	PriceMax        *int64   `json:"price_max"` // в копейках
	DiversityWeight *float64 `json:"diversity_weight"`
}

type searchResponse struct {
	Results    []domain.SearchResult `json:"results"`
	Total      int                   `json:"total"`
	Weight     float64               `json:"weight"`
	Method     string                `json:"method"`
	Modalities []string              `json:"modalities"`
	TookMs     int64                 `json:"took_ms"`
	Cached     bool                  `json:"cached"`
}

func newSearchResponse(res *usecase.SearchRes) *searchResponse {
	return &searchResponse{
		Results:    res.Results,
		Total:      res.Total,
		Weight:     res.Weight,
		Method:     res.Method,
		Modalities: res.Modalities,
		TookMs:     res.TookMs,
		Cached:     res.Cached,
	}
}

// search
//
//	@Summary		Кросс-модальный поиск товаров
//	@Description	Ищет товары по тексту, изображению или обеим модальностям сразу.
//	@Description	JSON-тело несет изображение в image_base64, multipart-форма в файле image.
//	@Tags			search
//	@Accept			json
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			request	body		searchRequest	false	"Параметры поиска"
//	@Success		200		{object}	searchResponse	"Результаты поиска"
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		503		{object}	ErrorResponse	"Модель или индекс не готовы"
//	@Router			/search [post]
func (s *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	const maxRequestSize = 32 << 20

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	req, err := parseSearchRequest(r)
	if err != nil {
		s.logger.Warnf("%d search request rejected: %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	res, err := s.searchUsecase.Search(r.Context(), req)
	if err != nil {
		s.logger.Warnf("search failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newSearchResponse(res))
}

// findSimilar
//
//	@Summary		Похожие товары
//	@Description	Возвращает товары, ближайшие к опорному товару в векторном пространстве
//	@Tags			search
//	@Produce		json
//	@Param			id		path		int				true	"ID опорного товара"
//	@Param			top_k	query		int				false	"Сколько соседей вернуть"
//	@Success		200		{object}	searchResponse	"Похожие товары"
//	@Failure		404		{object}	ErrorResponse	"Товар не найден"
//	@Router			/products/{id}/similar [get]
func (s *SearchHandler) findSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	topK, err := parseOptionalInt(r.URL.Query().Get("top_k"))
	if err != nil {
		WriteError(w, e.ErrInvalidTopK)
		return
	}

	res, err := s.searchUsecase.FindSimilar(r.Context(), usecase.NewSimilarReq(id, topK))
	if err != nil {
		s.logger.Warnf("similar search failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newSearchResponse(res))
}

func parseSearchRequest(r *http.Request) (*usecase.SearchReq, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return parseSearchForm(r)
	}
	return parseSearchJSON(r)
}

func parseSearchJSON(r *http.Request) (*usecase.SearchReq, error) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, e.Wrap(err.Error(), e.ErrMalformedRequest)
	}

	req := &usecase.SearchReq{
		Text:            body.Text,
		Weight:          body.Weight,
		TopK:            body.TopK,
		Method:          body.Method,
		Category:        body.Category,
		PriceMin:        body.PriceMin,
		PriceMax:        body.PriceMax,
		DiversityWeight: body.DiversityWeight,
	}

	if body.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(body.ImageBase64)
		if err != nil || len(data) == 0 {
			return nil, e.ErrInvalidImagePayload
		}
		mimeType := http.DetectContentType(data[:min(len(data), 512)])
		req.Image = usecase.NewProductImage(data, mimeType, int64(len(data)), "query")
	}

	return req, nil
}

func parseSearchForm(r *http.Request) (*usecase.SearchReq, error) {
	const (
		maxMemory    = 32 << 20
		maxImageSize = 15 << 20
	)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, e.Wrap(err.Error(), e.ErrMalformedRequest)
	}

	req := &usecase.SearchReq{
		Text:     r.FormValue("text"),
		Method:   r.FormValue("method"),
		Category: strings.TrimSpace(r.FormValue("category")),
	}

	weight, err := parseOptionalFloat(r.FormValue("weight"))
	if err != nil {
		return nil, e.ErrWeightOutOfRange
	}
	req.Weight = weight

	topK, err := parseOptionalInt(r.FormValue("top_k"))
	if err != nil {
		return nil, e.ErrInvalidTopK
	}
	req.TopK = topK

	req.PriceMin, err = parseOptionalPrice(r.FormValue("price_min"))
	if err != nil {
		return nil, err
	}
	req.PriceMax, err = parseOptionalPrice(r.FormValue("price_max"))
	if err != nil {
		return nil, err
	}

	diversity, err := parseOptionalFloat(r.FormValue("diversity_weight"))
	if err != nil {
		return nil, e.ErrMalformedRequest
	}
	req.DiversityWeight = diversity

	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		data, mimeType, err := readFile(files[0], maxImageSize)
		if err != nil {
			return nil, err
		}
		req.Image = usecase.NewProductImage(data, mimeType, int64(len(data)), files[0].Filename)
	}

	return req, nil
}

// parseOptionalPrice разбирает денежное значение формы в копейки
func parseOptionalPrice(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	cents, err := parsePriceToCents(raw)
	if err != nil {
		return nil, err
	}
	return &cents, nil
}
