package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/DRSN-tech/search-backend/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...any)            {}
func (nopLogger) Infof(format string, args ...any)             {}
func (nopLogger) Warnf(format string, args ...any)             {}
func (nopLogger) Errorf(err error, format string, args ...any) {}

// stubEncoder returns the same canned vector for every text and every image
// and counts calls, so tests can prove the encoder was never reached.
type stubEncoder struct {
	textVec    []float32
	imageVec   []float32
	err        error
	textCalls  int
	imageCalls int
}

func (s *stubEncoder) EncodeTexts(_ context.Context, req *EncodeTextsReq) ([]EncodeRes, error) {
	s.textCalls++
	if s.err != nil {
		return nil, s.err
	}

	res := make([]EncodeRes, len(req.Texts))
	for i := range res {
		res[i] = EncodeRes{Vector: s.textVec, ModelVersion: "stub"}
	}
	return res, nil
}

func (s *stubEncoder) EncodeImages(_ context.Context, req *EncodeImagesReq) ([]EncodeRes, error) {
	s.imageCalls++
	if s.err != nil {
		return nil, s.err
	}

	res := make([]EncodeRes, len(req.Images))
	for i := range res {
		res[i] = EncodeRes{Vector: s.imageVec, ModelVersion: "stub"}
	}
	return res, nil
}

func (s *stubEncoder) Health(context.Context) error { return s.err }

// stubIndex keeps points in process memory. Upsert replaces the point with
// the same ID, matching both real backends.
type stubIndex struct {
	mu          sync.Mutex
	collections []string
	upserts     map[string][]domain.Embedding
	dropped     []string
	hits        []*domain.SearchHit
	anchor      *domain.SearchHit
	lastQuery   *VectorQueryReq
	queryErr    error
}

func (s *stubIndex) EnsureCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = append(s.collections, name)
	return nil
}

func (s *stubIndex) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropped = append(s.dropped, name)
	kept := s.collections[:0]
	for _, c := range s.collections {
		if c != name {
			kept = append(kept, c)
		}
	}
	s.collections = kept
	return nil
}

func (s *stubIndex) ListCollections(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.collections...), nil
}

func (s *stubIndex) Count(_ context.Context, collection string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.upserts[collection])), nil
}

func (s *stubIndex) Upsert(_ context.Context, collection string, vectors []domain.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upserts == nil {
		s.upserts = make(map[string][]domain.Embedding)
	}
	points := s.upserts[collection]
	for _, v := range vectors {
		replaced := false
		for i := range points {
			if points[i].ID == v.ID {
				points[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			points = append(points, v)
		}
	}
	s.upserts[collection] = points
	return nil
}

func (s *stubIndex) Query(_ context.Context, req *VectorQueryReq) ([]*domain.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastQuery = req
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.hits, nil
}

func (s *stubIndex) Retrieve(context.Context, string, int64) (*domain.SearchHit, error) {
	return s.anchor, nil
}

func (s *stubIndex) points(collection string) []domain.Embedding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Embedding(nil), s.upserts[collection]...)
}

// stubCatalog pages through the catalog the same way keyset pagination does.
type stubCatalog struct {
	catalog []CatalogProduct
	infos   []ProductInfo
	infoIDs []int64
}

func (s *stubCatalog) Upsert(context.Context, *domain.Product) (*UpsertProductRes, error) {
	return nil, errors.New("unexpected call")
}

func (s *stubCatalog) SetImageURL(context.Context, int64, string) error { return nil }

func (s *stubCatalog) GetProductsInfo(_ context.Context, ids []int64) ([]ProductInfo, error) {
	s.infoIDs = append(s.infoIDs, ids...)

	out := make([]ProductInfo, 0, len(ids))
	for _, id := range ids {
		for _, info := range s.infos {
			if info.ID == id {
				out = append(out, info)
			}
		}
	}
	return out, nil
}

func (s *stubCatalog) ListCatalog(_ context.Context, afterID int64, limit int) ([]CatalogProduct, error) {
	out := make([]CatalogProduct, 0, limit)
	for _, p := range s.catalog {
		if p.ID <= afterID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type stubImages struct {
	objects map[string][]byte
}

func (s *stubImages) Upload(context.Context, *domain.Image) (string, error) {
	return "", errors.New("unexpected call")
}

func (s *stubImages) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *stubImages) Delete(context.Context, string) error { return nil }

// stubCache misses by default. Setters called from background goroutines are
// no-ops so tests stay race-free.
type stubCache struct {
	mu              sync.Mutex
	products        map[int64]ProductInfo
	embeddings      map[string][]float32
	searchResults   map[string][]domain.SearchResult
	invalidated     []string
	invalidateCount int64
	deletedIDs      []int64
}

func (s *stubCache) GetProducts(context.Context, []int64) (map[int64]ProductInfo, error) {
	return s.products, nil
}

func (s *stubCache) SetProducts(context.Context, []ProductInfo) error { return nil }

func (s *stubCache) DeleteProducts(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedIDs = append(s.deletedIDs, ids...)
	return nil
}

func (s *stubCache) GetEmbedding(_ context.Context, modality, identifier string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embeddings[modality+"|"+identifier], nil
}

func (s *stubCache) SetEmbedding(context.Context, string, string, []float32) error { return nil }

func (s *stubCache) GetSearchResults(_ context.Context, key string) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchResults[key], nil
}

func (s *stubCache) SetSearchResults(context.Context, string, []domain.SearchResult) error {
	return nil
}

func (s *stubCache) InvalidatePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, prefix)
	return s.invalidateCount, nil
}

func (s *stubCache) Stats(context.Context) (*CacheStatsRes, error) {
	return &CacheStatsRes{Connected: true}, nil
}

func (s *stubCache) invalidatedPrefixes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.invalidated...)
}

func (s *stubCache) deletedProducts() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.deletedIDs...)
}
