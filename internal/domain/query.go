package domain

// SearchFilters ограничивает кандидатов по метаданным
type SearchFilters struct {
	Category string
	PriceMin *int64 // в копейках
	PriceMax *int64 // в копейках
}

func (f SearchFilters) Empty() bool {
	return f.Category == "" && f.PriceMin == nil && f.PriceMax == nil
}

// SearchQuery описывает кросс-модальный поисковый запрос.
// Хотя бы одна из модальностей (текст или изображение) обязана присутствовать.
type SearchQuery struct {
	Text            string
	ImageBytes      []byte
	ImageMime       string
	Weight          float64 // вес изображения, [0,1]
	TopK            int
	Method          FusionMethod
	Filters         SearchFilters
	DiversityWeight float64
}

func (q *SearchQuery) HasText() bool {
	return q.Text != ""
}

func (q *SearchQuery) HasImage() bool {
	return len(q.ImageBytes) > 0
}
