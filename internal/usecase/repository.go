package usecase

import (
	"context"

	"github.com/DRSN-tech/search-backend/internal/domain"
)

type ProductRepository interface {
	Upsert(ctx context.Context, product *domain.Product) (*UpsertProductRes, error)
	SetImageURL(ctx context.Context, productID int64, imageURL string) error
	GetProductsInfo(ctx context.Context, ids []int64) ([]ProductInfo, error)
	ListCatalog(ctx context.Context, afterID int64, limit int) ([]CatalogProduct, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) (*domain.Category, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// VectorIndexRepository — векторный индекс (Qdrant или in-memory бэкенд).
// Перестроение пишет в новую коллекцию и атомарно переключает активную.
type VectorIndexRepository interface {
	EnsureCollection(ctx context.Context, name string) error
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	Count(ctx context.Context, collection string) (uint64, error)
	Upsert(ctx context.Context, collection string, vectors []domain.Embedding) error
	Query(ctx context.Context, req *VectorQueryReq) ([]*domain.SearchHit, error)
	Retrieve(ctx context.Context, collection string, productID int64) (*domain.SearchHit, error)
}

type EmbeddingVersionRepository interface {
	BumpVersion(ctx context.Context, productID int64) (*domain.ProductEmbeddingVersion, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}

type CacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]ProductInfo, error)
	SetProducts(ctx context.Context, products []ProductInfo) error
	DeleteProducts(ctx context.Context, ids []int64) error

	// Эмбеддинги запроса. Промах — (nil, nil), кэш не считается источником ошибок поиска.
	GetEmbedding(ctx context.Context, modality string, identifier string) ([]float32, error)
	SetEmbedding(ctx context.Context, modality string, identifier string, vector []float32) error

	GetSearchResults(ctx context.Context, key string) ([]domain.SearchResult, error)
	SetSearchResults(ctx context.Context, key string, results []domain.SearchResult) error

	InvalidatePrefix(ctx context.Context, prefix string) (int64, error)
	Stats(ctx context.Context) (*CacheStatsRes, error)
}
