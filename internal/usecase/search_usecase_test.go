package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSearchCfg() *cfg.SearchCfg {
	return &cfg.SearchCfg{
		DefaultWeight:   0.7,
		BuildWeight:     0.5,
		DefaultTopK:     10,
		MaxTopK:         100,
		OverfetchFactor: 2,
	}
}

type searchEnv struct {
	uc      *SearchUseCase
	encoder *stubEncoder
	index   *stubIndex
	cache   *stubCache
	state   *IndexState
}

func newSearchEnv() *searchEnv {
	encoder := &stubEncoder{textVec: []float32{1, 0}, imageVec: []float32{0, 1}}
	index := &stubIndex{}
	cache := &stubCache{}
	state := NewIndexState()
	state.SetEncoderReady(true)
	state.Activate("products_v1", 3)

	uc := NewSearchUC(encoder, index, NewFusionEngine(), state, cache, testSearchCfg(), nopLogger{})
	return &searchEnv{uc: uc, encoder: encoder, index: index, cache: cache, state: state}
}

func ptr[T any](v T) *T { return &v }

func TestSearchRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		req     *SearchReq
		wantErr error
	}{
		{
			name:    "no modalities",
			req:     &SearchReq{},
			wantErr: e.ErrNoQueryModalities,
		},
		{
			name:    "whitespace-only text",
			req:     &SearchReq{Text: "   "},
			wantErr: e.ErrNoQueryModalities,
		},
		{
			name:    "image without bytes",
			req:     &SearchReq{Image: &ProductImage{}},
			wantErr: e.ErrNoQueryModalities,
		},
		{
			name:    "NaN weight",
			req:     &SearchReq{Text: "shoes", Weight: ptr(math.NaN())},
			wantErr: e.ErrWeightOutOfRange,
		},
		{
			name:    "infinite weight",
			req:     &SearchReq{Text: "shoes", Weight: ptr(math.Inf(1))},
			wantErr: e.ErrWeightOutOfRange,
		},
		{
			name:    "zero top_k",
			req:     &SearchReq{Text: "shoes", TopK: ptr(0)},
			wantErr: e.ErrInvalidTopK,
		},
		{
			name:    "negative top_k",
			req:     &SearchReq{Text: "shoes", TopK: ptr(-5)},
			wantErr: e.ErrInvalidTopK,
		},
		{
			name:    "top_k above limit",
			req:     &SearchReq{Text: "shoes", TopK: ptr(101)},
			wantErr: e.ErrInvalidTopK,
		},
		{
			name:    "unknown fusion method",
			req:     &SearchReq{Text: "shoes", Method: "concat"},
			wantErr: e.ErrUnknownFusionMethod,
		},
		{
			name:    "negative price bound",
			req:     &SearchReq{Text: "shoes", PriceMin: ptr(int64(-1))},
			wantErr: e.ErrInvalidPriceRange,
		},
		{
			name:    "inverted price range",
			req:     &SearchReq{Text: "shoes", PriceMin: ptr(int64(100)), PriceMax: ptr(int64(50))},
			wantErr: e.ErrInvalidPriceRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSearchEnv()

			res, err := env.uc.Search(context.Background(), tt.req)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			// Validation fails before any model call
			assert.Zero(t, env.encoder.textCalls)
			assert.Zero(t, env.encoder.imageCalls)
		})
	}
}

func TestSearchRequiresReadiness(t *testing.T) {
	env := newSearchEnv()
	env.state.SetEncoderReady(false)

	_, err := env.uc.Search(context.Background(), &SearchReq{Text: "shoes"})
	assert.ErrorIs(t, err, e.ErrEncoderNotReady)
	assert.Zero(t, env.encoder.textCalls)

	// Encoder is up but the index has never been built
	encoder := &stubEncoder{textVec: []float32{1, 0}}
	state := NewIndexState()
	state.SetEncoderReady(true)
	uc := NewSearchUC(encoder, &stubIndex{}, NewFusionEngine(), state, &stubCache{}, testSearchCfg(), nopLogger{})

	_, err = uc.Search(context.Background(), &SearchReq{Text: "shoes"})
	assert.ErrorIs(t, err, e.ErrIndexNotReady)
	assert.Zero(t, encoder.textCalls)
}

func TestSearchTextOnly(t *testing.T) {
	env := newSearchEnv()
	env.index.hits = []*domain.SearchHit{
		domain.NewSearchHit("b", 2, 0.2, domain.Payload{"title": "Sandals", "category": "shoes", "price": int64(4990)}),
		domain.NewSearchHit("a", 1, 0.9, domain.Payload{"title": "Sneakers", "category": "shoes", "price": int64(7990)}),
	}

	res, err := env.uc.Search(context.Background(), &SearchReq{Text: "running shoes"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 0.7, res.Weight)
	assert.Equal(t, "weighted_avg", res.Method)
	assert.Equal(t, []string{ModalityText}, res.Modalities)
	assert.False(t, res.Cached)

	// Raw dot products map onto [0,1] and sort descending
	assert.Equal(t, int64(1), res.Results[0].ProductID)
	assert.InDelta(t, 0.95, res.Results[0].Score, 1e-6)
	assert.Equal(t, "Sneakers", res.Results[0].Title)
	assert.NotEmpty(t, res.Results[0].Explanation)
	assert.Equal(t, int64(2), res.Results[1].ProductID)
	assert.InDelta(t, 0.6, res.Results[1].Score, 1e-6)

	require.NotNil(t, env.index.lastQuery)
	assert.Equal(t, "products_v1", env.index.lastQuery.Collection)
	assert.Equal(t, uint64(20), env.index.lastQuery.Limit) // top_k * overfetch
	assert.False(t, env.index.lastQuery.WithVectors)
	assert.Equal(t, 1, env.encoder.textCalls)
	assert.Zero(t, env.encoder.imageCalls)
}

func TestSearchRescoresWithQueryWeight(t *testing.T) {
	env := newSearchEnv()
	// Index order is misleading on purpose: the stored fused vectors were
	// built at weight 0.5, the caller asks for 0.9
	env.index.hits = []*domain.SearchHit{
		domain.NewSearchHit("b", 2, 0.9, domain.Payload{
			"title":        "Text twin",
			"text_vector":  []float32{0, 1},
			"image_vector": []float32{1, 0},
		}),
		domain.NewSearchHit("a", 1, 0.1, domain.Payload{
			"title":        "Image twin",
			"text_vector":  []float32{1, 0},
			"image_vector": []float32{0, 1},
		}),
	}

	res, err := env.uc.Search(context.Background(), &SearchReq{
		Text:   "query",
		Image:  NewProductImage([]byte{1, 2, 3}, "image/jpeg", 3, "query"),
		Weight: ptr(0.9),
	})
	require.NoError(t, err)

	require.NotNil(t, env.index.lastQuery)
	assert.True(t, env.index.lastQuery.WithVectors)

	// Product 1 matches both per-modality query vectors, product 2 neither
	require.Len(t, res.Results, 2)
	assert.Equal(t, int64(1), res.Results[0].ProductID)
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-6)
	assert.Equal(t, int64(2), res.Results[1].ProductID)
	assert.InDelta(t, 0.5, res.Results[1].Score, 1e-6)

	assert.Equal(t, []string{ModalityText, ModalityImage}, res.Modalities)
	assert.Equal(t, 0.9, res.Weight)
}

func TestSearchServesCachedResults(t *testing.T) {
	env := newSearchEnv()

	key := searchCacheKey(&domain.SearchQuery{
		Text:   "shoes",
		Weight: 0.7,
		TopK:   10,
		Method: domain.FusionWeightedAvg,
	})
	env.cache.searchResults = map[string][]domain.SearchResult{
		key: {{ProductID: 42, Title: "Cached sneakers", Score: 0.9}},
	}

	res, err := env.uc.Search(context.Background(), &SearchReq{Text: "shoes"})
	require.NoError(t, err)

	assert.True(t, res.Cached)
	require.Len(t, res.Results, 1)
	assert.Equal(t, int64(42), res.Results[0].ProductID)
	// Cache hit short-circuits the whole pipeline
	assert.Zero(t, env.encoder.textCalls)
	assert.Nil(t, env.index.lastQuery)
}

func TestSearchReusesCachedEmbedding(t *testing.T) {
	env := newSearchEnv()
	env.cache.embeddings = map[string][]float32{
		ModalityText + "|shoes": {1, 0},
	}
	env.index.hits = []*domain.SearchHit{
		domain.NewSearchHit("a", 1, 0.9, domain.Payload{"title": "Sneakers"}),
	}

	res, err := env.uc.Search(context.Background(), &SearchReq{Text: "shoes"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	assert.Zero(t, env.encoder.textCalls)
}

func TestSearchTruncatesOverfetchedResults(t *testing.T) {
	env := newSearchEnv()
	env.index.hits = []*domain.SearchHit{
		domain.NewSearchHit("a", 1, 0.9, domain.Payload{"title": "A"}),
		domain.NewSearchHit("b", 2, 0.8, domain.Payload{"title": "B"}),
		domain.NewSearchHit("c", 3, 0.7, domain.Payload{"title": "C"}),
	}

	res, err := env.uc.Search(context.Background(), &SearchReq{Text: "shoes", TopK: ptr(2)})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, int64(1), res.Results[0].ProductID)
	assert.Equal(t, int64(2), res.Results[1].ProductID)
	assert.Equal(t, uint64(4), env.index.lastQuery.Limit)
}

func TestFindSimilar(t *testing.T) {
	env := newSearchEnv()
	env.index.anchor = &domain.SearchHit{ID: "anchor", ProductID: 7, Vector: []float32{1, 0}}
	env.index.hits = []*domain.SearchHit{
		domain.NewSearchHit("c", 3, 0.7, domain.Payload{"title": "Close cousin"}),
		domain.NewSearchHit("d", 4, 0.9, domain.Payload{"title": "Near twin"}),
	}

	res, err := env.uc.FindSimilar(context.Background(), NewSimilarReq(7, ptr(5)))
	require.NoError(t, err)

	require.NotNil(t, env.index.lastQuery)
	assert.Equal(t, []float32{1, 0}, env.index.lastQuery.Vector)
	require.NotNil(t, env.index.lastQuery.ExcludeProductID)
	assert.Equal(t, int64(7), *env.index.lastQuery.ExcludeProductID)
	assert.Equal(t, uint64(5), env.index.lastQuery.Limit)

	require.Len(t, res.Results, 2)
	assert.Equal(t, int64(4), res.Results[0].ProductID)
	assert.Equal(t, int64(3), res.Results[1].ProductID)
	assert.NotEmpty(t, res.Results[0].Explanation)
}

func TestFindSimilarUnknownProduct(t *testing.T) {
	env := newSearchEnv()

	_, err := env.uc.FindSimilar(context.Background(), NewSimilarReq(0, nil))
	assert.ErrorIs(t, err, e.ErrProductNotFound)

	// Valid ID, but the point is not in the index
	_, err = env.uc.FindSimilar(context.Background(), NewSimilarReq(99, nil))
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestFindSimilarValidatesTopK(t *testing.T) {
	env := newSearchEnv()

	_, err := env.uc.FindSimilar(context.Background(), NewSimilarReq(7, ptr(0)))
	assert.ErrorIs(t, err, e.ErrInvalidTopK)

	_, err = env.uc.FindSimilar(context.Background(), NewSimilarReq(7, ptr(1000)))
	assert.ErrorIs(t, err, e.ErrInvalidTopK)
}

func TestSearchCacheKeyDistinguishesQueries(t *testing.T) {
	base := &domain.SearchQuery{Text: "shoes", Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg}

	variants := []*domain.SearchQuery{
		{Text: "boots", Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg},
		{Text: "shoes", Weight: 0.6, TopK: 10, Method: domain.FusionWeightedAvg},
		{Text: "shoes", Weight: 0.5, TopK: 20, Method: domain.FusionWeightedAvg},
		{Text: "shoes", Weight: 0.5, TopK: 10, Method: domain.FusionElementWise},
		{Text: "shoes", Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg, Filters: domain.SearchFilters{Category: "shoes"}},
		{Text: "shoes", Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg, Filters: domain.SearchFilters{PriceMin: ptr(int64(100))}},
		{Text: "shoes", Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg, DiversityWeight: 0.3},
		{Text: "shoes", ImageBytes: []byte{1}, Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg},
	}

	baseKey := searchCacheKey(base)
	for _, v := range variants {
		assert.NotEqual(t, baseKey, searchCacheKey(v))
	}

	// Text case does not matter
	assert.Equal(t, baseKey, searchCacheKey(&domain.SearchQuery{Text: "SHOES", Weight: 0.5, TopK: 10, Method: domain.FusionWeightedAvg}))
}
