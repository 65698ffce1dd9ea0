package flatindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "products_v1"

// seedRepo builds a tiny catalog with known geometry: v1 points along the
// query axis, v2 is orthogonal to it, v3 sits in between.
func seedRepo(t *testing.T) *EmbeddingRepo {
	t.Helper()

	repo := NewEmbeddingRepo()
	err := repo.Upsert(context.Background(), testCollection, []domain.Embedding{
		*domain.NewEmbedding(usecase.PointID(1), []float32{1, 0}, domain.Payload{
			"product_id": int64(1), "title": "Sneakers", "category": "shoes", "price": int64(7990),
		}),
		*domain.NewEmbedding(usecase.PointID(2), []float32{0, 1}, domain.Payload{
			"product_id": int64(2), "title": "Backpack", "category": "bags", "price": int64(12990),
		}),
		*domain.NewEmbedding(usecase.PointID(3), []float32{0.707, 0.707}, domain.Payload{
			"product_id": int64(3), "title": "Sandals", "category": "shoes", "price": int64(4990),
		}),
	})
	require.NoError(t, err)

	return repo
}

func TestQueryRanksByDotProduct(t *testing.T) {
	repo := seedRepo(t)

	hits, err := repo.Query(context.Background(), &usecase.VectorQueryReq{
		Collection: testCollection,
		Vector:     []float32{1, 0},
		Limit:      2,
	})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ProductID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, int64(3), hits[1].ProductID)
	assert.InDelta(t, 0.707, hits[1].Score, 1e-6)

	// The orthogonal vector never makes top-2
	for _, hit := range hits {
		assert.NotEqual(t, int64(2), hit.ProductID)
	}
}

func TestQueryLimitAboveCollectionSize(t *testing.T) {
	repo := seedRepo(t)

	hits, err := repo.Query(context.Background(), &usecase.VectorQueryReq{
		Collection: testCollection,
		Vector:     []float32{1, 0},
		Limit:      50,
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Full scan comes back in descending score order without duplicates
	seen := make(map[int64]bool)
	for i, hit := range hits {
		assert.False(t, seen[hit.ProductID], "duplicate product %d", hit.ProductID)
		seen[hit.ProductID] = true
		if i > 0 {
			assert.LessOrEqual(t, hit.Score, hits[i-1].Score)
		}
	}
}

func TestQueryBreaksTiesByProductID(t *testing.T) {
	repo := NewEmbeddingRepo()
	err := repo.Upsert(context.Background(), testCollection, []domain.Embedding{
		*domain.NewEmbedding(usecase.PointID(9), []float32{1, 0}, domain.Payload{"product_id": int64(9)}),
		*domain.NewEmbedding(usecase.PointID(2), []float32{1, 0}, domain.Payload{"product_id": int64(2)}),
		*domain.NewEmbedding(usecase.PointID(5), []float32{1, 0}, domain.Payload{"product_id": int64(5)}),
	})
	require.NoError(t, err)

	// Map iteration order is random, the result order must not be
	for i := 0; i < 5; i++ {
		hits, err := repo.Query(context.Background(), &usecase.VectorQueryReq{
			Collection: testCollection,
			Vector:     []float32{1, 0},
			Limit:      3,
		})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, int64(2), hits[0].ProductID)
		assert.Equal(t, int64(5), hits[1].ProductID)
		assert.Equal(t, int64(9), hits[2].ProductID)
	}
}

func TestUpsertReplacesPointWithSameID(t *testing.T) {
	repo := NewEmbeddingRepo()
	ctx := context.Background()

	first := domain.NewEmbedding(usecase.PointID(1), []float32{1, 0}, domain.Payload{"product_id": int64(1), "title": "old"})
	require.NoError(t, repo.Upsert(ctx, testCollection, []domain.Embedding{*first}))

	second := domain.NewEmbedding(usecase.PointID(1), []float32{0, 1}, domain.Payload{"product_id": int64(1), "title": "new"})
	require.NoError(t, repo.Upsert(ctx, testCollection, []domain.Embedding{*second}))

	count, err := repo.Count(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	hit, err := repo.Retrieve(ctx, testCollection, 1)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, []float32{0, 1}, hit.Vector)
	assert.Equal(t, "new", hit.Title())
}

func TestQueryFilters(t *testing.T) {
	repo := seedRepo(t)
	ctx := context.Background()

	t.Run("category", func(t *testing.T) {
		hits, err := repo.Query(ctx, &usecase.VectorQueryReq{
			Collection: testCollection,
			Vector:     []float32{1, 0},
			Limit:      10,
			Filters:    domain.SearchFilters{Category: "bags"},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, int64(2), hits[0].ProductID)
	})

	t.Run("price range", func(t *testing.T) {
		min, max := int64(5000), int64(10000)
		hits, err := repo.Query(ctx, &usecase.VectorQueryReq{
			Collection: testCollection,
			Vector:     []float32{1, 0},
			Limit:      10,
			Filters:    domain.SearchFilters{PriceMin: &min, PriceMax: &max},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, int64(1), hits[0].ProductID)
	})

	t.Run("exclude product", func(t *testing.T) {
		exclude := int64(1)
		hits, err := repo.Query(ctx, &usecase.VectorQueryReq{
			Collection:       testCollection,
			Vector:           []float32{1, 0},
			Limit:            10,
			ExcludeProductID: &exclude,
		})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, hit := range hits {
			assert.NotEqual(t, int64(1), hit.ProductID)
		}
	})
}

func TestQueryUnknownCollection(t *testing.T) {
	repo := NewEmbeddingRepo()

	_, err := repo.Query(context.Background(), &usecase.VectorQueryReq{
		Collection: "missing",
		Vector:     []float32{1, 0},
		Limit:      10,
	})
	assert.ErrorIs(t, err, e.ErrIndexNotReady)

	_, err = repo.Count(context.Background(), "missing")
	assert.ErrorIs(t, err, e.ErrIndexNotReady)
}

func TestQuerySkipsMismatchedVectorSize(t *testing.T) {
	repo := NewEmbeddingRepo()
	err := repo.Upsert(context.Background(), testCollection, []domain.Embedding{
		*domain.NewEmbedding(usecase.PointID(1), []float32{1, 0, 0}, domain.Payload{"product_id": int64(1)}),
	})
	require.NoError(t, err)

	hits, err := repo.Query(context.Background(), &usecase.VectorQueryReq{
		Collection: testCollection,
		Vector:     []float32{1, 0},
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieve(t *testing.T) {
	repo := seedRepo(t)
	ctx := context.Background()

	hit, err := repo.Retrieve(ctx, testCollection, 3)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, int64(3), hit.ProductID)
	assert.Equal(t, []float32{0.707, 0.707}, hit.Vector)

	// Unknown product is a miss, not an error
	hit, err = repo.Retrieve(ctx, testCollection, 404)
	require.NoError(t, err)
	assert.Nil(t, hit)

	_, err = repo.Retrieve(ctx, "missing", 3)
	assert.ErrorIs(t, err, e.ErrIndexNotReady)
}

func TestDropCollection(t *testing.T) {
	repo := seedRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.DropCollection(ctx, testCollection))
	_, err := repo.Count(ctx, testCollection)
	assert.ErrorIs(t, err, e.ErrIndexNotReady)

	// Dropping what is already gone is fine
	assert.NoError(t, repo.DropCollection(ctx, testCollection))
}

func TestListCollectionsSorted(t *testing.T) {
	repo := NewEmbeddingRepo()
	ctx := context.Background()

	require.NoError(t, repo.EnsureCollection(ctx, "products_v200"))
	require.NoError(t, repo.EnsureCollection(ctx, "products_v100"))
	require.NoError(t, repo.EnsureCollection(ctx, "products"))

	names, err := repo.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"products", "products_v100", "products_v200"}, names)
}

func TestSnapshotRoundtrip(t *testing.T) {
	repo := seedRepo(t)
	path := filepath.Join(t.TempDir(), "index.json")

	require.NoError(t, repo.SaveSnapshot(path))

	restored := NewEmbeddingRepo()
	require.NoError(t, restored.LoadSnapshot(path))

	count, err := restored.Count(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	hits, err := restored.Query(context.Background(), &usecase.VectorQueryReq{
		Collection: testCollection,
		Vector:     []float32{1, 0},
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ProductID)
	assert.Equal(t, int64(3), hits[1].ProductID)

	// JSON turns payload integers into float64, filters still work
	min := int64(10000)
	hits, err = restored.Query(context.Background(), &usecase.VectorQueryReq{
		Collection: testCollection,
		Vector:     []float32{1, 0},
		Limit:      10,
		Filters:    domain.SearchFilters{PriceMin: &min},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ProductID)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	repo := NewEmbeddingRepo()

	err := repo.LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err)

	names, err := repo.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
