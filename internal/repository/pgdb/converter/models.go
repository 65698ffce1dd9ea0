package converter

import (
	"time"

	"github.com/DRSN-tech/search-backend/internal/usecase"
)

// ProductModel представляет запись таблицы products в PostgreSQL.
type ProductModel struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Price       int64      `db:"price"`
	CategoryID  int64      `db:"category_id"`
	Brand       string     `db:"brand"`
	Rating      float64    `db:"rating"`
	ImageURL    string     `db:"image_url"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
	IsArchived  bool       `db:"is_archived"`
}

// CategoryModel представляет запись таблицы categories в PostgreSQL.
type CategoryModel struct {
	ID         int64      `db:"id"`
	Name       string     `db:"name"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
	IsArchived bool       `db:"is_archived"`
}

// ProductEmbeddingVersionModel представляет запись таблицы product_embedding_version.
type ProductEmbeddingVersionModel struct {
	ID               int64      `db:"id"`
	ProductID        int64      `db:"product_id"`
	EmbeddingVersion int32      `db:"embedding_version"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at"`
	IsArchived       bool       `db:"is_archived"`
}

// OutboxEventModel представляет запись таблицы outbox_events.
type OutboxEventModel struct {
	ID          int64                   `db:"id"`
	EventID     string                  `db:"event_id"`
	EventType   usecase.OutboxEventType `db:"event_type"`
	ProductID   int64                   `db:"product_id"`
	Payload     []byte                  `db:"payload"`
	Status      usecase.OutboxStatus    `db:"status"`
	CreatedAt   time.Time               `db:"created_at"`
	ProcessedAt *time.Time              `db:"processed_at"`
}
