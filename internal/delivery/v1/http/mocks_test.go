package http

import (
	"context"

	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...any)            {}
func (nopLogger) Infof(format string, args ...any)             {}
func (nopLogger) Warnf(format string, args ...any)             {}
func (nopLogger) Errorf(err error, format string, args ...any) {}

type stubSearchUC struct {
	searchRes   *usecase.SearchRes
	similarRes  *usecase.SearchRes
	err         error
	lastSearch  *usecase.SearchReq
	lastSimilar *usecase.SimilarReq
}

func (s *stubSearchUC) Search(_ context.Context, req *usecase.SearchReq) (*usecase.SearchRes, error) {
	s.lastSearch = req
	if s.err != nil {
		return nil, s.err
	}
	return s.searchRes, nil
}

func (s *stubSearchUC) FindSimilar(_ context.Context, req *usecase.SimilarReq) (*usecase.SearchRes, error) {
	s.lastSimilar = req
	if s.err != nil {
		return nil, s.err
	}
	return s.similarRes, nil
}

type stubProductUC struct {
	event   *usecase.OutboxEvent
	res     *usecase.GetProductsRes
	err     error
	lastAdd *usecase.AddNewProductReq
	lastGet *usecase.GetProductsReq
}

func (s *stubProductUC) RegisterNewProduct(_ context.Context, req *usecase.AddNewProductReq) (*usecase.OutboxEvent, error) {
	s.lastAdd = req
	if s.err != nil {
		return nil, s.err
	}
	return s.event, nil
}

func (s *stubProductUC) GetProductsInfo(_ context.Context, req *usecase.GetProductsReq) (*usecase.GetProductsRes, error) {
	s.lastGet = req
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type stubIndexUC struct {
	rebuildRes *usecase.RebuildRes
	statsRes   *usecase.IndexStatsRes
	readyErr   error
	err        error
}

func (s *stubIndexUC) Rebuild(context.Context) (*usecase.RebuildRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rebuildRes, nil
}

func (s *stubIndexUC) Stats(context.Context) (*usecase.IndexStatsRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.statsRes, nil
}

func (s *stubIndexUC) Ready(context.Context) error { return s.readyErr }

type stubCacheUC struct {
	stats   *usecase.CacheStatsRes
	deleted int64
	err     error
	lastReq *usecase.InvalidateCacheReq
}

func (s *stubCacheUC) Stats(context.Context) (*usecase.CacheStatsRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stats, nil
}

func (s *stubCacheUC) Invalidate(_ context.Context, req *usecase.InvalidateCacheReq) (int64, error) {
	s.lastReq = req
	if s.err != nil {
		return 0, s.err
	}
	return s.deleted, nil
}

// newTestRouter mounts the stubs through the real route table, so tests hit
// the same paths and middleware the binary serves.
func newTestRouter(search usecase.SearchUC, products usecase.ProductUC, index usecase.IndexUC, cache usecase.CacheUC) *chi.Mux {
	mux := chi.NewRouter()
	NewRouter(mux, nopLogger{}).Init(search, products, index, cache)
	return mux
}
