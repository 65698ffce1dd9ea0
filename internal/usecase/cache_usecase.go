package usecase

import (
	"context"

	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
)

// Префиксы пространств ключей кэша.
const (
	CachePrefixEmbedding = "embedding"
	CachePrefixSearch    = "search"
	CachePrefixProduct   = "product"
)

// CacheUseCase открывает наружу статистику и инвалидацию кэша.
type CacheUseCase struct {
	cacheRepo CacheRepository
	logger    logger.Logger
}

func NewCacheUC(cacheRepo CacheRepository, logger logger.Logger) *CacheUseCase {
	return &CacheUseCase{
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

func (c *CacheUseCase) Stats(ctx context.Context) (*CacheStatsRes, error) {
	const op = "CacheUseCase.Stats"

	stats, err := c.cacheRepo.Stats(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return stats, nil
}

// Invalidate удаляет ключи кэша: либо все пространство префикса, либо данные
// конкретного товара вместе с закэшированной выдачей.
func (c *CacheUseCase) Invalidate(ctx context.Context, req *InvalidateCacheReq) (int64, error) {
	const op = "CacheUseCase.Invalidate"

	if req.ProductID > 0 {
		if err := c.cacheRepo.DeleteProducts(ctx, []int64{req.ProductID}); err != nil {
			return 0, e.Wrap(op, err)
		}

		deleted, err := c.cacheRepo.InvalidatePrefix(ctx, CachePrefixSearch)
		if err != nil {
			return 0, e.Wrap(op, err)
		}

		return deleted + 1, nil
	}

	switch req.Prefix {
	case CachePrefixEmbedding, CachePrefixSearch, CachePrefixProduct:
	default:
		return 0, e.Wrap(op, e.ErrInvalidCachePrefix)
	}

	deleted, err := c.cacheRepo.InvalidatePrefix(ctx, req.Prefix)
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	return deleted, nil
}
