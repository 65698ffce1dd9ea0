package flatindex

import (
	"context"
	"sort"
	"sync"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/viterin/vek/vek32"
)

// EmbeddingRepo хранит векторы товаров в памяти процесса и ищет полным
// перебором со скалярным произведением. Точность на малых каталогах та же,
// что у Qdrant, инфраструктура не нужна. Выбирается через INDEX_BACKEND=memory.
type EmbeddingRepo struct {
	mu          sync.RWMutex
	collections map[string]map[string]*point
}

type point struct {
	ID        string
	ProductID int64
	Vector    []float32
	Payload   domain.Payload
}

func NewEmbeddingRepo() *EmbeddingRepo {
	return &EmbeddingRepo{
		collections: make(map[string]map[string]*point),
	}
}

// EnsureCollection создает пустую коллекцию, если ее еще нет
func (f *EmbeddingRepo) EnsureCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[name]; !ok {
		f.collections[name] = make(map[string]*point)
	}

	return nil
}

// DropCollection удаляет коллекцию. Удаление отсутствующей коллекции не ошибка.
func (f *EmbeddingRepo) DropCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.collections, name)

	return nil
}

// ListCollections возвращает имена коллекций в детерминированном порядке
func (f *EmbeddingRepo) ListCollections(_ context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Count возвращает число точек в коллекции
func (f *EmbeddingRepo) Count(_ context.Context, collection string) (uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	points, ok := f.collections[collection]
	if !ok {
		return 0, e.Wrap(whereami.WhereAmI(), e.ErrIndexNotReady)
	}

	return uint64(len(points)), nil
}

// Upsert сохраняет или обновляет точки коллекции. Точка с существующим ID
// замещается целиком, поэтому повторная сборка каталога идемпотентна.
func (f *EmbeddingRepo) Upsert(_ context.Context, collection string, vectors []domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	points, ok := f.collections[collection]
	if !ok {
		points = make(map[string]*point)
		f.collections[collection] = points
	}

	for _, vector := range vectors {
		points[vector.ID] = &point{
			ID:        vector.ID,
			ProductID: payloadInt64(vector.Payload, "product_id"),
			Vector:    vector.Vector,
			Payload:   vector.Payload,
		}
	}

	return nil
}

// Query ищет ближайшие точки полным перебором. Порядок детерминирован:
// по убыванию скора, при равенстве по возрастанию product_id.
func (f *EmbeddingRepo) Query(_ context.Context, req *usecase.VectorQueryReq) ([]*domain.SearchHit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	points, ok := f.collections[req.Collection]
	if !ok {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrIndexNotReady)
	}

	hits := make([]*domain.SearchHit, 0, len(points))
	for _, p := range points {
		if !matchesFilters(p, req) {
			continue
		}
		if len(p.Vector) != len(req.Vector) {
			continue
		}

		hit := domain.NewSearchHit(p.ID, p.ProductID, vek32.Dot(req.Vector, p.Vector), p.Payload)
		if req.WithVectors {
			hit.Vector = p.Vector
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ProductID < hits[j].ProductID
	})

	if req.Limit > 0 && uint64(len(hits)) > req.Limit {
		hits = hits[:req.Limit]
	}

	return hits, nil
}

// Retrieve достает точку товара по детерминированному ID вместе с вектором.
// Отсутствие точки не является ошибкой и возвращается как (nil, nil).
func (f *EmbeddingRepo) Retrieve(_ context.Context, collection string, productID int64) (*domain.SearchHit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	points, ok := f.collections[collection]
	if !ok {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrIndexNotReady)
	}

	p, ok := points[usecase.PointID(productID)]
	if !ok {
		return nil, nil
	}

	hit := domain.NewSearchHit(p.ID, p.ProductID, 0, p.Payload)
	hit.Vector = p.Vector

	return hit, nil
}

func matchesFilters(p *point, req *usecase.VectorQueryReq) bool {
	if req.ExcludeProductID != nil && p.ProductID == *req.ExcludeProductID {
		return false
	}

	filters := req.Filters
	if filters.Empty() {
		return true
	}

	if filters.Category != "" {
		category, _ := p.Payload["category"].(string)
		if category != filters.Category {
			return false
		}
	}

	price := payloadInt64(p.Payload, "price")
	if filters.PriceMin != nil && price < *filters.PriceMin {
		return false
	}
	if filters.PriceMax != nil && price > *filters.PriceMax {
		return false
	}

	return true
}

// payloadInt64 читает число из payload. После JSON-снапшота целые
// приходят как float64, поэтому поддержаны оба представления.
func payloadInt64(p domain.Payload, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
