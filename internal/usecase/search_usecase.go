package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/viterin/vek/vek32"
)

// SearchUseCase реализует кросс-модальный поиск: энкодер переводит текст и
// изображение в общее векторное пространство, слитый вектор запроса уходит в
// индекс, кандидаты пересчитываются с весом запроса и обогащаются метаданными.
type SearchUseCase struct {
	encoder   EncoderInfra
	index     VectorIndexRepository
	fusion    *FusionEngine
	state     *IndexState
	cacheRepo CacheRepository
	cfg       *cfg.SearchCfg
	logger    logger.Logger
}

func NewSearchUC(
	encoder EncoderInfra,
	index VectorIndexRepository,
	fusion *FusionEngine,
	state *IndexState,
	cacheRepo CacheRepository,
	cfg *cfg.SearchCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		encoder:   encoder,
		index:     index,
		fusion:    fusion,
		state:     state,
		cacheRepo: cacheRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Search выполняет поиск товаров по тексту, изображению или обеим модальностям.
// Валидация запроса происходит до обращения к энкодеру и индексу.
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"

	query, err := s.normalizeQuery(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	collection, err := s.readyCollection()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	started := time.Now()

	cacheKey := searchCacheKey(query)
	cached, err := s.cacheRepo.GetSearchResults(ctx, cacheKey)
	if err != nil {
		s.logger.Warnf("Search cache lookup failed: %v", e.Wrap(op, err))
	} else if cached != nil {
		return s.newSearchRes(cached, query, started, true), nil
	}

	fused, err := s.encodeAndFuse(ctx, query)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	results, err := s.runQuery(ctx, collection, query, fused)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Фоновое кэширование выдачи
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := s.cacheRepo.SetSearchResults(bgCtx, cacheKey, results); err != nil {
			s.logger.Warnf("Failed to cache search results in background: %v", e.Wrap(op, err))
		}
	}()

	return s.newSearchRes(results, query, started, false), nil
}

// FindSimilar возвращает товары, ближайшие к уже проиндексированному товару.
// Опорный товар ищется по слитому вектору своей точки и исключается из выдачи.
func (s *SearchUseCase) FindSimilar(ctx context.Context, req *SimilarReq) (*SearchRes, error) {
	const op = "SearchUseCase.FindSimilar"

	if req.ProductID <= 0 {
		return nil, e.Wrap(op, e.ErrProductNotFound)
	}

	topK := s.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 || topK > s.cfg.MaxTopK {
		return nil, e.Wrap(op, e.ErrInvalidTopK)
	}

	collection, err := s.readyCollection()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	started := time.Now()

	anchor, err := s.index.Retrieve(ctx, collection, req.ProductID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if anchor == nil || len(anchor.Vector) == 0 {
		return nil, e.Wrap(op, e.ErrProductNotFound)
	}

	hits, err := s.index.Query(ctx, &VectorQueryReq{
		Collection:       collection,
		Vector:           anchor.Vector,
		Limit:            uint64(topK),
		ExcludeProductID: &req.ProductID,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := displayScore(float64(hit.Score))
		result := hitToResult(hit, score)
		result.Explanation = matchLevel(score)
		results = append(results, result)
	}
	sortResults(results)

	return &SearchRes{
		Results: results,
		Total:   len(results),
		TookMs:  time.Since(started).Milliseconds(),
	}, nil
}

// normalizeQuery валидирует запрос и подставляет значения по умолчанию.
func (s *SearchUseCase) normalizeQuery(req *SearchReq) (*domain.SearchQuery, error) {
	query := &domain.SearchQuery{
		Text: strings.TrimSpace(req.Text),
	}
	if req.Image != nil && len(req.Image.Data) > 0 {
		query.ImageBytes = req.Image.Data
		query.ImageMime = req.Image.MimeType
	}

	if !query.HasText() && !query.HasImage() {
		return nil, e.ErrNoQueryModalities
	}

	weight := s.cfg.DefaultWeight
	if req.Weight != nil {
		weight = *req.Weight
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			return nil, e.ErrWeightOutOfRange
		}
	}
	query.Weight = clampWeight(weight)

	topK := s.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 || topK > s.cfg.MaxTopK {
		return nil, e.ErrInvalidTopK
	}
	query.TopK = topK

	method := domain.FusionMethod(req.Method)
	if method == "" {
		method = domain.FusionWeightedAvg
	}
	if !method.Valid() {
		return nil, e.ErrUnknownFusionMethod
	}
	query.Method = method

	if (req.PriceMin != nil && *req.PriceMin < 0) || (req.PriceMax != nil && *req.PriceMax < 0) {
		return nil, e.ErrInvalidPriceRange
	}
	if req.PriceMin != nil && req.PriceMax != nil && *req.PriceMin > *req.PriceMax {
		return nil, e.ErrInvalidPriceRange
	}
	query.Filters = domain.SearchFilters{
		Category: strings.TrimSpace(req.Category),
		PriceMin: req.PriceMin,
		PriceMax: req.PriceMax,
	}

	if req.DiversityWeight != nil && !math.IsNaN(*req.DiversityWeight) {
		query.DiversityWeight = clamp01(*req.DiversityWeight)
	}

	return query, nil
}

// readyCollection проверяет готовность энкодера и индекса к обслуживанию запросов.
func (s *SearchUseCase) readyCollection() (string, error) {
	if !s.state.EncoderReady() {
		return "", e.ErrEncoderNotReady
	}

	collection, ok := s.state.ActiveCollection()
	if !ok {
		return "", e.ErrIndexNotReady
	}

	return collection, nil
}

// encodeAndFuse получает векторы присутствующих модальностей и сливает их.
func (s *SearchUseCase) encodeAndFuse(ctx context.Context, query *domain.SearchQuery) (*domain.FusedQuery, error) {
	var (
		textVec  []float32
		imageVec []float32
		err      error
	)

	if query.HasText() {
		textVec, err = s.textEmbedding(ctx, query.Text)
		if err != nil {
			return nil, err
		}
	}

	if query.HasImage() {
		imageVec, err = s.imageEmbedding(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	return s.fusion.Fuse(textVec, imageVec, query.Weight, query.Method)
}

func (s *SearchUseCase) textEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vec, err := s.cacheRepo.GetEmbedding(ctx, ModalityText, text); err != nil {
		s.logger.Warnf("Embedding cache lookup failed: %v", err)
	} else if vec != nil {
		return vec, nil
	}

	res, err := s.encoder.EncodeTexts(ctx, NewEncodeTextsReq([]string{text}))
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || len(res[0].Vector) == 0 {
		return nil, e.ErrVectorEmbeddingEmpty
	}

	vec := res[0].Vector
	s.cacheEmbedding(ModalityText, text, vec)

	return vec, nil
}

func (s *SearchUseCase) imageEmbedding(ctx context.Context, query *domain.SearchQuery) ([]float32, error) {
	identifier := digest(query.ImageBytes)

	if vec, err := s.cacheRepo.GetEmbedding(ctx, ModalityImage, identifier); err != nil {
		s.logger.Warnf("Embedding cache lookup failed: %v", err)
	} else if vec != nil {
		return vec, nil
	}

	image := NewProductImage(query.ImageBytes, query.ImageMime, int64(len(query.ImageBytes)), "query")
	res, err := s.encoder.EncodeImages(ctx, NewEncodeImagesReq([]ProductImage{*image}))
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || len(res[0].Vector) == 0 {
		return nil, e.ErrVectorEmbeddingEmpty
	}

	vec := res[0].Vector
	s.cacheEmbedding(ModalityImage, identifier, vec)

	return vec, nil
}

// cacheEmbedding кладет вектор в кэш в фоне, ошибки не влияют на запрос.
func (s *SearchUseCase) cacheEmbedding(modality, identifier string, vec []float32) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := s.cacheRepo.SetEmbedding(bgCtx, modality, identifier, vec); err != nil {
			s.logger.Warnf("Failed to cache %s embedding in background: %v", modality, err)
		}
	}()
}

// runQuery выполняет поиск по индексу и собирает итоговую выдачу.
func (s *SearchUseCase) runQuery(ctx context.Context, collection string, query *domain.SearchQuery, fused *domain.FusedQuery) ([]domain.SearchResult, error) {
	// Кандидатов забираем с запасом: фильтры и штраф за повторы категории
	// съедают часть выдачи.
	limit := query.TopK * s.cfg.OverfetchFactor
	if limit < query.TopK {
		limit = query.TopK
	}

	hits, err := s.index.Query(ctx, &VectorQueryReq{
		Collection:  collection,
		Vector:      fused.Vector,
		Limit:       uint64(limit),
		Filters:     query.Filters,
		WithVectors: len(fused.Modalities) == 2,
	})
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := displayScore(s.rescore(hit, fused))
		result := hitToResult(hit, score)
		result.Explanation = buildExplanation(score, fused, hit, query)
		results = append(results, result)
	}

	sortResults(results)
	results = applyDiversity(results, query.DiversityWeight)

	if len(results) > query.TopK {
		results = results[:query.TopK]
	}

	return results, nil
}

// rescore пересчитывает скор кандидата с весом запроса по помодальным
// векторам из payload. Когда помодальных векторов нет, остается скор индекса.
func (s *SearchUseCase) rescore(hit *domain.SearchHit, fused *domain.FusedQuery) float64 {
	if len(fused.Modalities) != 2 {
		return float64(hit.Score)
	}

	docImage := hit.ImageVector()
	docText := hit.TextVector()
	if len(docImage) != len(fused.ImageVector) || len(docText) != len(fused.TextVector) {
		return float64(hit.Score)
	}

	w := fused.Scores.ImageContribution
	return w*float64(vek32.Dot(fused.ImageVector, docImage)) +
		(1-w)*float64(vek32.Dot(fused.TextVector, docText))
}

func (s *SearchUseCase) newSearchRes(results []domain.SearchResult, query *domain.SearchQuery, started time.Time, cached bool) *SearchRes {
	modalities := make([]string, 0, 2)
	if query.HasText() {
		modalities = append(modalities, ModalityText)
	}
	if query.HasImage() {
		modalities = append(modalities, ModalityImage)
	}

	return &SearchRes{
		Results:    results,
		Total:      len(results),
		Weight:     query.Weight,
		Method:     string(query.Method),
		Modalities: modalities,
		TookMs:     time.Since(started).Milliseconds(),
		Cached:     cached,
	}
}

func hitToResult(hit *domain.SearchHit, score float64) domain.SearchResult {
	return domain.SearchResult{
		ProductID: hit.ProductID,
		Title:     hit.Title(),
		Price:     hit.Price(),
		Category:  hit.Category(),
		Brand:     hit.Brand(),
		Rating:    hit.Rating(),
		ImageURL:  hit.ImageURL(),
		Score:     score,
	}
}

// searchCacheKey собирает канонический дескриптор запроса для кэша выдачи.
func searchCacheKey(q *domain.SearchQuery) string {
	imageDigest := ""
	if q.HasImage() {
		imageDigest = digest(q.ImageBytes)
	}

	priceMin, priceMax := int64(-1), int64(-1)
	if q.Filters.PriceMin != nil {
		priceMin = *q.Filters.PriceMin
	}
	if q.Filters.PriceMax != nil {
		priceMax = *q.Filters.PriceMax
	}

	return fmt.Sprintf("%s|%s|%.3f|%d|%s|%s|%d|%d|%.3f",
		strings.ToLower(q.Text),
		imageDigest,
		q.Weight,
		q.TopK,
		q.Method,
		strings.ToLower(q.Filters.Category),
		priceMin,
		priceMax,
		q.DiversityWeight,
	)
}

func digest(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
