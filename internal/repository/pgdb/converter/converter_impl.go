package converter

import (
	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/internal/usecase"
)

type ProductConverterImpl struct{}

func NewProductConverterImpl() *ProductConverterImpl {
	return &ProductConverterImpl{}
}

func (c *ProductConverterImpl) ToModel(entity *domain.Product) *ProductModel {
	if entity == nil {
		return nil
	}

	return &ProductModel{
		ID:          entity.ID,
		Title:       entity.Title,
		Description: entity.Description,
		Price:       entity.Price,
		CategoryID:  entity.CategoryID,
		Brand:       entity.Brand,
		Rating:      entity.Rating,
		ImageURL:    entity.ImageURL,
		CreatedAt:   ConvertTime(entity.CreatedAt),
		UpdatedAt:   ConvertPointerTime(entity.UpdatedAt),
		IsArchived:  entity.IsArchived,
	}
}

func (c *ProductConverterImpl) ToEntity(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}

	return &domain.Product{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Price:       model.Price,
		CategoryID:  model.CategoryID,
		Brand:       model.Brand,
		Rating:      model.Rating,
		ImageURL:    model.ImageURL,
		CreatedAt:   ConvertTime(model.CreatedAt),
		UpdatedAt:   ConvertPointerTime(model.UpdatedAt),
		IsArchived:  model.IsArchived,
	}
}

type CategoryConverterImpl struct{}

func NewCategoryConverterImpl() *CategoryConverterImpl {
	return &CategoryConverterImpl{}
}

func (c *CategoryConverterImpl) ToModel(entity *domain.Category) *CategoryModel {
	if entity == nil {
		return nil
	}

	return &CategoryModel{
		ID:         entity.ID,
		Name:       entity.Name,
		CreatedAt:  ConvertTime(entity.CreatedAt),
		UpdatedAt:  ConvertPointerTime(entity.UpdatedAt),
		IsArchived: entity.IsArchived,
	}
}

func (c *CategoryConverterImpl) ToEntity(model *CategoryModel) *domain.Category {
	if model == nil {
		return nil
	}

	return &domain.Category{
		ID:         model.ID,
		Name:       model.Name,
		CreatedAt:  ConvertTime(model.CreatedAt),
		UpdatedAt:  ConvertPointerTime(model.UpdatedAt),
		IsArchived: model.IsArchived,
	}
}

type ProductEmbeddingVersionConverterImpl struct{}

func NewProductEmbeddingVersionConverterImpl() *ProductEmbeddingVersionConverterImpl {
	return &ProductEmbeddingVersionConverterImpl{}
}

func (c *ProductEmbeddingVersionConverterImpl) ToModel(entity *domain.ProductEmbeddingVersion) *ProductEmbeddingVersionModel {
	if entity == nil {
		return nil
	}

	return &ProductEmbeddingVersionModel{
		ID:               entity.ID,
		ProductID:        entity.ProductID,
		EmbeddingVersion: entity.EmbeddingVersion,
		CreatedAt:        ConvertTime(entity.CreatedAt),
		UpdatedAt:        ConvertPointerTime(entity.UpdatedAt),
		IsArchived:       entity.IsArchived,
	}
}

func (c *ProductEmbeddingVersionConverterImpl) ToEntity(model *ProductEmbeddingVersionModel) *domain.ProductEmbeddingVersion {
	if model == nil {
		return nil
	}

	return &domain.ProductEmbeddingVersion{
		ID:               model.ID,
		ProductID:        model.ProductID,
		EmbeddingVersion: model.EmbeddingVersion,
		CreatedAt:        ConvertTime(model.CreatedAt),
		UpdatedAt:        ConvertPointerTime(model.UpdatedAt),
		IsArchived:       model.IsArchived,
	}
}

type OutboxEventConverterImpl struct{}

func NewOutboxEventConverterImpl() *OutboxEventConverterImpl {
	return &OutboxEventConverterImpl{}
}

func (c *OutboxEventConverterImpl) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   ConvertOutboxEventType(entity.EventType),
		ProductID:   entity.ProductID,
		Payload:     entity.Payload,
		Status:      ConvertOutBoxStatus(entity.Status),
		CreatedAt:   ConvertTime(entity.CreatedAt),
		ProcessedAt: ConvertPointerTime(entity.ProcessedAt),
	}
}

func (c *OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	if model == nil {
		return nil
	}

	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   ConvertOutboxEventType(model.EventType),
		ProductID:   model.ProductID,
		Payload:     model.Payload,
		Status:      ConvertOutBoxStatus(model.Status),
		CreatedAt:   ConvertTime(model.CreatedAt),
		ProcessedAt: ConvertPointerTime(model.ProcessedAt),
	}
}

func (c *OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	if models == nil {
		return nil
	}

	entities := make([]*usecase.OutboxEvent, 0, len(models))
	for _, model := range models {
		entities = append(entities, c.ToEntity(model))
	}

	return entities
}
