package usecase

import (
	"time"

	"github.com/DRSN-tech/search-backend/internal/domain"
)

// Модальности кросс-модального запроса.
const (
	ModalityText  = "text"
	ModalityImage = "image"
)

// SEARCH USECASE

// SearchReq — кросс-модальный поисковый запрос. Текст и изображение
// опциональны по отдельности, но хотя бы одно обязано присутствовать.
type SearchReq struct {
	Text            string
	Image           *ProductImage
	Weight          *float64 // вес изображения, nil — значение по умолчанию
	TopK            *int     // nil — значение по умолчанию
	Method          string   // weighted_avg | element_wise
	Category        string
	PriceMin        *int64 // в копейках
	PriceMax        *int64 // в копейках
	DiversityWeight *float64
}

// SimilarReq — запрос похожих товаров по идентификатору опорного товара.
type SimilarReq struct {
	ProductID int64
	TopK      *int
}

// SearchRes — результаты поиска с метаданными выполнения запроса.
type SearchRes struct {
	Results    []domain.SearchResult
	Total      int
	Weight     float64
	Method     string
	Modalities []string
	TookMs     int64
	Cached     bool
}

// PRODUCT USECASE

// AddNewProductReq — запрос на добавление нового продукта.
type AddNewProductReq struct {
	Title        string
	Description  string
	CategoryName string
	Brand        string
	Rating       float64
	Price        int64
	Images       []ProductImage
}

// ProductImage представляет изображение, загруженное через multipart/form-data.
type ProductImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

// GetProductsReq запрос информации о продуктах по их идентификаторам.
type GetProductsReq struct {
	IDs []int64
}

// GetProductsRes — ответ с данными запрошенных продуктов.
type GetProductsRes struct {
	Products         []ProductInfo
	NotFoundProducts []int64
}

// ProductInfo — DTO с информацией о продукте для внешнего использования.
type ProductInfo struct {
	ID           int64
	Title        string
	CategoryName string
	Price        int64
	Brand        string
	Rating       float64
	ImageURL     string
}

// INDEX USECASE

// CatalogProduct — строка каталога для офлайн-построения индекса.
type CatalogProduct struct {
	ID               int64
	Title            string
	Description      string
	Price            int64
	Category         string
	Brand            string
	Rating           float64
	ImageKey         string
	EmbeddingVersion int32
}

// RebuildRes — итог перестроения индекса.
type RebuildRes struct {
	Collection string
	Points     uint64
	TookMs     int64
}

// IndexStatsRes — состояние поискового индекса и энкодера.
type IndexStatsRes struct {
	Backend      string
	Collection   string
	Points       uint64
	VectorSize   uint64
	EncoderReady bool
	IndexReady   bool
	BuiltAt      time.Time
}

// CACHE USECASE

type CacheStatsRes struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	TotalKeys int64
	Connected bool
}

// InvalidateCacheReq — либо префикс ключей, либо конкретный продукт.
type InvalidateCacheReq struct {
	Prefix    string
	ProductID int64
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	ProductUpserted OutboxEventType = "product_upserted"
)

// OutboxEvent — запись transactional outbox. Payload уходит в Kafka как есть.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	ProductID   int64
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ProductChangeEvent — JSON-содержимое outbox-события для консьюмеров Kafka.
type ProductChangeEvent struct {
	EventID          string `json:"event_id"`
	EventType        string `json:"event_type"`
	ProductID        int64  `json:"product_id"`
	EmbeddingVersion int32  `json:"embedding_version"`
	ModelVersion     string `json:"model_version"`
	OccurredAt       int64  `json:"occurred_at"`
}

// INFRASTUCTURE

// EncodeTextsReq — запрос на векторизацию текстов.
type EncodeTextsReq struct {
	Texts []string
}

// EncodeImagesReq — запрос на векторизацию изображений.
type EncodeImagesReq struct {
	Images []ProductImage
}

// EncodeRes — результат векторизации одного текста или изображения.
type EncodeRes struct {
	Vector       []float32
	ModelVersion string
}

// UploadImagesRes — результат загрузки изображений (ключи в MinIO).
type UploadImagesRes struct {
	ImagesKeys []string
}

// UploadImagesReq — запрос на загрузку изображений продукта.
type UploadImagesReq struct {
	Name   string
	Images []ProductImage
}

type WriteRawMessageReq struct {
	ProductID int64
	Payload   []byte
}

// REPOSITORIES

type UpsertProductRes struct {
	Product   *domain.Product
	NoChanges bool
}

// VectorQueryReq — поиск top-K ближайших точек в коллекции.
type VectorQueryReq struct {
	Collection       string
	Vector           []float32
	Limit            uint64
	Filters          domain.SearchFilters
	ExcludeProductID *int64
	WithVectors      bool // вернуть помодальные векторы из payload
}

// MAPPERS

func NewUpsertProductRes(product *domain.Product, noChanges bool) *UpsertProductRes {
	return &UpsertProductRes{
		Product:   product,
		NoChanges: noChanges,
	}
}

func NewProductInfo(id int64, title string, category string, price int64, brand string, rating float64, imageURL string) ProductInfo {
	return ProductInfo{
		ID:           id,
		Title:        title,
		CategoryName: category,
		Price:        price,
		Brand:        brand,
		Rating:       rating,
		ImageURL:     imageURL,
	}
}

func NewEncodeRes(vector []float32, modelVersion string) *EncodeRes {
	return &EncodeRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewEncodeTextsReq(texts []string) *EncodeTextsReq {
	return &EncodeTextsReq{
		Texts: texts,
	}
}

func NewEncodeImagesReq(images []ProductImage) *EncodeImagesReq {
	return &EncodeImagesReq{
		Images: images,
	}
}

func NewUploadImagesReq(name string, images []ProductImage) *UploadImagesReq {
	return &UploadImagesReq{
		Name:   name,
		Images: images,
	}
}

func NewUploadImagesRes(imagesKeys []string) *UploadImagesRes {
	return &UploadImagesRes{
		ImagesKeys: imagesKeys,
	}
}

func NewAddNewProductReq(title, description, category, brand string, rating float64, price int64, images []ProductImage) *AddNewProductReq {
	return &AddNewProductReq{
		Title:        title,
		Description:  description,
		CategoryName: category,
		Brand:        brand,
		Rating:       rating,
		Price:        price,
		Images:       images,
	}
}

func NewProductImage(data []byte, mimeType string, size int64, name string) *ProductImage {
	return &ProductImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewGetProductsRes(pr []ProductInfo, notFoundProducts []int64) *GetProductsRes {
	return &GetProductsRes{
		Products:         pr,
		NotFoundProducts: notFoundProducts,
	}
}

func NewGetProductsReq(ids []int64) *GetProductsReq {
	return &GetProductsReq{ids}
}

func NewWriteRawMessageReq(productID int64, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		ProductID: productID,
		Payload:   payload,
	}
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, productID int64, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   eventID,
		EventType: eventType,
		ProductID: productID,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
}

func NewSimilarReq(productID int64, topK *int) *SimilarReq {
	return &SimilarReq{
		ProductID: productID,
		TopK:      topK,
	}
}

// SearchText возвращает текст строки каталога, который уходит в энкодер.
func (p CatalogProduct) SearchText() string {
	if p.Description == "" {
		return p.Title
	}
	return p.Title + ". " + p.Description
}
