package usecase

import "context"

type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
	FindSimilar(ctx context.Context, req *SimilarReq) (*SearchRes, error)
}

type ProductUC interface {
	RegisterNewProduct(ctx context.Context, req *AddNewProductReq) (*OutboxEvent, error)
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
}

type IndexUC interface {
	Rebuild(ctx context.Context) (*RebuildRes, error)
	Stats(ctx context.Context) (*IndexStatsRes, error)
	Ready(ctx context.Context) error
}

type CacheUC interface {
	Stats(ctx context.Context) (*CacheStatsRes, error)
	Invalidate(ctx context.Context, req *InvalidateCacheReq) (int64, error)
}
