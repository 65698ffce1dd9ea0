package domain

import "time"

// Product описывает товар каталога
type Product struct {
	ID          int64
	Title       string
	Description string
	Price       int64 // Цена хранится в копейках
	CategoryID  int64
	Brand       string
	Rating      float64
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	IsArchived  bool
}

func NewProduct(title string, description string, price int64, categoryID int64, brand string, rating float64) *Product {
	return &Product{
		Title:       title,
		Description: description,
		Price:       price,
		CategoryID:  categoryID,
		Brand:       brand,
		Rating:      rating,
	}
}

// SearchText возвращает текст товара, который уходит в энкодер
func (p *Product) SearchText() string {
	if p.Description == "" {
		return p.Title
	}
	return p.Title + ". " + p.Description
}
