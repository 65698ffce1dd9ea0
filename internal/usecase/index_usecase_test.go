package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexEnv struct {
	uc      *IndexUseCase
	catalog *stubCatalog
	images  *stubImages
	encoder *stubEncoder
	index   *stubIndex
	cache   *stubCache
	state   *IndexState
}

func newIndexEnv() *indexEnv {
	catalog := &stubCatalog{}
	images := &stubImages{objects: map[string][]byte{}}
	encoder := &stubEncoder{textVec: []float32{1, 0}, imageVec: []float32{0, 1}}
	index := &stubIndex{}
	cache := &stubCache{}
	state := NewIndexState()
	state.SetEncoderReady(true)

	uc := NewIndexUC(
		catalog,
		images,
		encoder,
		NewFusionEngine(),
		index,
		state,
		cache,
		testSearchCfg(),
		&cfg.IndexCfg{Backend: "memory"},
		&cfg.QdrantCfg{QdrantCollectionName: "products", VectorSize: 2},
		nopLogger{},
	)
	return &indexEnv{uc: uc, catalog: catalog, images: images, encoder: encoder, index: index, cache: cache, state: state}
}

func TestCollectionVersion(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		collection  string
		wantVersion int64
		wantOK      bool
	}{
		{name: "base name is generation zero", base: "products", collection: "products", wantVersion: 0, wantOK: true},
		{name: "versioned name", base: "products", collection: "products_v1700000000", wantVersion: 1700000000, wantOK: true},
		{name: "foreign collection", base: "products", collection: "catalog_v5", wantOK: false},
		{name: "garbage suffix", base: "products", collection: "products_v12x", wantOK: false},
		{name: "empty suffix", base: "products", collection: "products_v", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := collectionVersion(tt.base, tt.collection)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantVersion, version)
			}
		})
	}
}

func TestRebuildRequiresEncoder(t *testing.T) {
	env := newIndexEnv()
	env.state.SetEncoderReady(false)

	_, err := env.uc.Rebuild(context.Background())

	assert.ErrorIs(t, err, e.ErrEncoderNotReady)
	assert.Empty(t, env.index.collections)
}

func TestRebuildBuildsAndActivates(t *testing.T) {
	env := newIndexEnv()
	env.catalog.catalog = []CatalogProduct{
		{ID: 1, Title: "Sneakers", Description: "Red running shoes", Price: 7990, Category: "shoes", ImageKey: "images/1.jpg"},
		{ID: 2, Title: "Sandals", Price: 4990, Category: "shoes", ImageKey: "images/missing.jpg"},
		{ID: 3, Title: "Backpack", Price: 12990, Category: "bags"},
	}
	env.images.objects["images/1.jpg"] = []byte{1, 2, 3}
	// Stale generation left over from a previous build
	env.index.collections = []string{"products_v100"}

	res, err := env.uc.Rebuild(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Collection, "products_v"))
	assert.Equal(t, uint64(3), res.Points)

	active, ok := env.state.ActiveCollection()
	require.True(t, ok)
	assert.Equal(t, res.Collection, active)
	assert.Equal(t, uint64(3), env.state.Points())

	assert.Contains(t, env.index.dropped, "products_v100")
	assert.Contains(t, env.cache.invalidatedPrefixes(), CachePrefixSearch)

	points := env.index.points(res.Collection)
	require.Len(t, points, 3)

	byID := make(map[string]domain.Embedding, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}

	// Product 1 has an image, its point fuses both modalities at the build weight
	withImage := byID[PointID(1)]
	require.NotNil(t, withImage.Payload)
	assert.InDelta(t, 0.7071, withImage.Vector[0], 1e-4)
	assert.InDelta(t, 0.7071, withImage.Vector[1], 1e-4)
	assert.NotNil(t, withImage.Payload["image_vector"])
	assert.Equal(t, "Sneakers", withImage.Payload["title"])

	// Unreadable image degrades the point to text-only instead of failing the build
	textOnly := byID[PointID(2)]
	assert.Equal(t, []float32{1, 0}, textOnly.Vector)
	assert.Nil(t, textOnly.Payload["image_vector"])
}

func TestRebuildIsIdempotent(t *testing.T) {
	env := newIndexEnv()
	env.catalog.catalog = []CatalogProduct{
		{ID: 1, Title: "Sneakers", Price: 7990, Category: "shoes"},
		{ID: 2, Title: "Sandals", Price: 4990, Category: "shoes"},
	}

	first, err := env.uc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), first.Points)

	second, err := env.uc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Points)

	active, ok := env.state.ActiveCollection()
	require.True(t, ok)
	assert.Equal(t, second.Collection, active)
	assert.Len(t, env.index.points(second.Collection), 2)
}

func TestRebuildDropsIncompleteCollection(t *testing.T) {
	env := newIndexEnv()
	env.catalog.catalog = []CatalogProduct{{ID: 1, Title: "Sneakers", Price: 7990}}
	env.encoder.err = errors.New("encoder down")

	_, err := env.uc.Rebuild(context.Background())

	require.Error(t, err)
	assert.Empty(t, env.index.collections)
	require.Len(t, env.index.dropped, 1)
	assert.True(t, strings.HasPrefix(env.index.dropped[0], "products_v"))

	_, ok := env.state.ActiveCollection()
	assert.False(t, ok)
}

func TestRestoreActiveCollection(t *testing.T) {
	env := newIndexEnv()
	env.index.collections = []string{"products", "products_v100", "products_v200", "unrelated"}
	env.index.upserts = map[string][]domain.Embedding{
		"products_v200": make([]domain.Embedding, 2),
	}

	err := env.uc.RestoreActiveCollection(context.Background())
	require.NoError(t, err)

	active, ok := env.state.ActiveCollection()
	require.True(t, ok)
	assert.Equal(t, "products_v200", active)
	assert.Equal(t, uint64(2), env.state.Points())
}

func TestRestoreActiveCollectionNothingToRestore(t *testing.T) {
	env := newIndexEnv()

	err := env.uc.RestoreActiveCollection(context.Background())
	require.NoError(t, err)

	_, ok := env.state.ActiveCollection()
	assert.False(t, ok)
}

func TestReady(t *testing.T) {
	env := newIndexEnv()
	env.state.SetEncoderReady(false)
	assert.ErrorIs(t, env.uc.Ready(context.Background()), e.ErrEncoderNotReady)

	env.state.SetEncoderReady(true)
	assert.ErrorIs(t, env.uc.Ready(context.Background()), e.ErrIndexNotReady)

	env.state.Activate("products_v1", 1)
	assert.NoError(t, env.uc.Ready(context.Background()))
}

func TestStats(t *testing.T) {
	env := newIndexEnv()

	res, err := env.uc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", res.Backend)
	assert.Equal(t, uint64(2), res.VectorSize)
	assert.True(t, res.EncoderReady)
	assert.False(t, res.IndexReady)
	assert.Empty(t, res.Collection)

	env.index.upserts = map[string][]domain.Embedding{
		"products_v1": make([]domain.Embedding, 3),
	}
	env.state.Activate("products_v1", 3)

	res, err = env.uc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IndexReady)
	assert.Equal(t, "products_v1", res.Collection)
	assert.Equal(t, uint64(3), res.Points)
	assert.False(t, res.BuiltAt.IsZero())
}
