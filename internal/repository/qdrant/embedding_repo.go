package qdrant

import (
	"context"

	"github.com/DRSN-tech/search-backend/internal/cfg"
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/usecase"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// EmbeddingRepo репозиторий для работы с embedding-векторами в Qdrant.
// Коллекции версионируются: каждая пересборка каталога пишет в новую
// коллекцию, активную выбирает слой usecase.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// EnsureCollection создает коллекцию, если ее еще нет. Векторы хранятся
// единично нормированными, поэтому метрика Dot совпадает с косинусной.
func (q *EmbeddingRepo) EnsureCollection(ctx context.Context, name string) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if exists {
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Dot,
		}),
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DropCollection удаляет коллекцию вместе с точками
func (q *EmbeddingRepo) DropCollection(ctx context.Context, name string) error {
	if err := q.client.DeleteCollection(ctx, name); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// ListCollections возвращает имена всех коллекций инстанса
func (q *EmbeddingRepo) ListCollections(ctx context.Context) ([]string, error) {
	names, err := q.client.ListCollections(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return names, nil
}

// Count возвращает точное число точек в коллекции
func (q *EmbeddingRepo) Count(ctx context.Context, collection string) (uint64, error) {
	exact := true
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return count, nil
}

// Upsert сохраняет или обновляет embedding-векторы в указанной коллекции Qdrant.
// Wait гарантирует, что после возврата точки видны поиску и Count.
func (q *EmbeddingRepo) Upsert(ctx context.Context, collection string, vectors []domain.Embedding) error {
	reqVectors := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, vector := range vectors {
		reqVectors = append(reqVectors, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(vector.ID),
			Vectors: qdrant.NewVectors(vector.Vector...),
			Payload: payloadToValueMap(vector.Payload),
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         reqVectors,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Query ищет ближайшие к вектору запроса точки с учетом фильтров
func (q *EmbeddingRepo) Query(ctx context.Context, req *usecase.VectorQueryReq) ([]*domain.SearchHit, error) {
	limit := req.Limit

	query := &qdrant.QueryPoints{
		CollectionName: req.Collection,
		Query: &qdrant.Query{
			Variant: &qdrant.Query_Nearest{
				Nearest: &qdrant.VectorInput{
					Variant: &qdrant.VectorInput_Dense{
						Dense: &qdrant.DenseVector{Data: req.Vector},
					},
				},
			},
		},
		Limit:  &limit,
		Filter: buildFilter(req),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if req.WithVectors {
		query.WithVectors = &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true},
		}
	}

	points, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	hits := make([]*domain.SearchHit, 0, len(points))
	for _, point := range points {
		hit := toSearchHit(point.Id, point.Payload)
		hit.Score = point.Score
		hit.Vector = point.Vectors.GetVector().GetData()
		hits = append(hits, hit)
	}

	return hits, nil
}

// Retrieve достает точку товара по детерминированному ID вместе с вектором.
// Отсутствие точки не является ошибкой и возвращается как (nil, nil).
func (q *EmbeddingRepo) Retrieve(ctx context.Context, collection string, productID int64) (*domain.SearchHit, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(usecase.PointID(productID))},
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	point := points[0]
	hit := toSearchHit(point.Id, point.Payload)
	hit.Vector = point.Vectors.GetVector().GetData()

	return hit, nil
}

// buildFilter собирает условия Qdrant из фильтров запроса.
// Возвращает nil, если фильтров нет.
func buildFilter(req *usecase.VectorQueryReq) *qdrant.Filter {
	must := make([]*qdrant.Condition, 0, 2)
	mustNot := make([]*qdrant.Condition, 0, 1)

	if req.Filters.Category != "" {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "category",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: req.Filters.Category},
					},
				},
			},
		})
	}

	if req.Filters.PriceMin != nil || req.Filters.PriceMax != nil {
		priceRange := &qdrant.Range{}
		if req.Filters.PriceMin != nil {
			gte := float64(*req.Filters.PriceMin)
			priceRange.Gte = &gte
		}
		if req.Filters.PriceMax != nil {
			lte := float64(*req.Filters.PriceMax)
			priceRange.Lte = &lte
		}

		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "price",
					Range: priceRange,
				},
			},
		})
	}

	if req.ExcludeProductID != nil {
		mustNot = append(mustNot, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "product_id",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Integer{Integer: *req.ExcludeProductID},
					},
				},
			},
		})
	}

	if len(must) == 0 && len(mustNot) == 0 {
		return nil
	}

	filter := &qdrant.Filter{}
	if len(must) > 0 {
		filter.Must = must
	}
	if len(mustNot) > 0 {
		filter.MustNot = mustNot
	}

	return filter
}

func toSearchHit(id *qdrant.PointId, payload map[string]*qdrant.Value) *domain.SearchHit {
	domainPayload := payloadToDomain(payload)
	productID, _ := domainPayload["product_id"].(int64)

	return &domain.SearchHit{
		ID:        id.GetUuid(),
		ProductID: productID,
		Payload:   domainPayload,
	}
}

// payloadToValueMap переводит payload точки в представление Qdrant.
// Помодальные векторы приводятся к []any заранее: NewValueMap не знает []float32.
func payloadToValueMap(payload domain.Payload) map[string]*qdrant.Value {
	normalized := make(map[string]any, len(payload))
	for key, value := range payload {
		if vec, ok := value.([]float32); ok {
			items := make([]any, len(vec))
			for i, f := range vec {
				items[i] = float64(f)
			}
			normalized[key] = items
			continue
		}
		normalized[key] = value
	}

	return qdrant.NewValueMap(normalized)
}

func payloadToDomain(payload map[string]*qdrant.Value) domain.Payload {
	result := make(domain.Payload, len(payload))
	for key, value := range payload {
		result[key] = valueToAny(value)
	}

	return result
}

func valueToAny(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(v.ListValue.GetValues()))
		for _, item := range v.ListValue.GetValues() {
			items = append(items, valueToAny(item))
		}
		return items
	default:
		return nil
	}
}
