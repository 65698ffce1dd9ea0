package usecase

import (
	"context"
	"testing"

	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateByPrefix(t *testing.T) {
	for _, prefix := range []string{CachePrefixEmbedding, CachePrefixSearch, CachePrefixProduct} {
		t.Run(prefix, func(t *testing.T) {
			cache := &stubCache{invalidateCount: 7}
			uc := NewCacheUC(cache, nopLogger{})

			deleted, err := uc.Invalidate(context.Background(), &InvalidateCacheReq{Prefix: prefix})

			require.NoError(t, err)
			assert.Equal(t, int64(7), deleted)
			assert.Equal(t, []string{prefix}, cache.invalidatedPrefixes())
		})
	}
}

func TestInvalidateUnknownPrefix(t *testing.T) {
	cache := &stubCache{}
	uc := NewCacheUC(cache, nopLogger{})

	for _, prefix := range []string{"everything", "searches", ""} {
		_, err := uc.Invalidate(context.Background(), &InvalidateCacheReq{Prefix: prefix})
		assert.ErrorIs(t, err, e.ErrInvalidCachePrefix, "prefix %q", prefix)
	}

	assert.Empty(t, cache.invalidatedPrefixes())
}

func TestInvalidateByProduct(t *testing.T) {
	cache := &stubCache{invalidateCount: 4}
	uc := NewCacheUC(cache, nopLogger{})

	deleted, err := uc.Invalidate(context.Background(), &InvalidateCacheReq{ProductID: 42})

	require.NoError(t, err)
	// Four invalidated search keys plus the product entry itself.
	assert.Equal(t, int64(5), deleted)
	assert.Equal(t, []int64{42}, cache.deletedProducts())
	assert.Equal(t, []string{CachePrefixSearch}, cache.invalidatedPrefixes())
}

func TestCacheUseCaseStats(t *testing.T) {
	uc := NewCacheUC(&stubCache{}, nopLogger{})

	stats, err := uc.Stats(context.Background())

	require.NoError(t, err)
	assert.True(t, stats.Connected)
}
