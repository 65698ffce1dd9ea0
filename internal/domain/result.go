package domain

// SearchResult — обогащенный результат поиска: метаданные товара,
// скор в диапазоне [0,1] и объяснение совпадения. Структура целиком
// уходит и в HTTP-ответ, и в кэш выдачи, поэтому несет json-теги.
type SearchResult struct {
	ProductID   int64   `json:"product_id"`
	Title       string  `json:"title"`
	Price       int64   `json:"price"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Rating      float64 `json:"rating"`
	ImageURL    string  `json:"image_url"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}
