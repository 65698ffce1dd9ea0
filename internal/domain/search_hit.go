package domain

// SearchHit описывает точку индекса, вернувшуюся из поиска по вектору
type SearchHit struct {
	ID        string
	ProductID int64
	Score     float32   // сырое скалярное произведение, [-1,1]
	Vector    []float32 // слитый вектор точки, заполняется только при Retrieve
	Payload   Payload
}

func NewSearchHit(id string, productID int64, score float32, payload Payload) *SearchHit {
	return &SearchHit{
		ID:        id,
		ProductID: productID,
		Score:     score,
		Payload:   payload,
	}
}

// Title возвращает название товара из payload.
func (h *SearchHit) Title() string {
	return payloadString(h.Payload, "title")
}

// Category возвращает категорию товара из payload.
func (h *SearchHit) Category() string {
	return payloadString(h.Payload, "category")
}

// Brand возвращает бренд товара из payload.
func (h *SearchHit) Brand() string {
	return payloadString(h.Payload, "brand")
}

// Price возвращает цену товара в копейках из payload.
func (h *SearchHit) Price() int64 {
	return payloadInt64(h.Payload, "price")
}

// Rating возвращает рейтинг товара из payload.
func (h *SearchHit) Rating() float64 {
	return payloadFloat(h.Payload, "rating")
}

// ImageURL возвращает ключ изображения товара из payload.
func (h *SearchHit) ImageURL() string {
	return payloadString(h.Payload, "image_url")
}

// TextVector возвращает помодальный текстовый вектор из payload, если он там есть
func (h *SearchHit) TextVector() []float32 {
	return vectorFromPayload(h.Payload, "text_vector")
}

// ImageVector возвращает помодальный вектор изображения из payload, если он там есть
func (h *SearchHit) ImageVector() []float32 {
	return vectorFromPayload(h.Payload, "image_vector")
}

// Payload после прохождения через Qdrant или JSON-снапшот теряет исходные
// типы Go, поэтому числа читаются с учетом обоих представлений.
func payloadString(p Payload, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt64(p Payload, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func payloadFloat(p Payload, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func vectorFromPayload(p Payload, key string) []float32 {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []float32:
		return v
	case []any:
		vec := make([]float32, 0, len(v))
		for _, item := range v {
			f, ok := item.(float64)
			if !ok {
				return nil
			}
			vec = append(vec, float32(f))
		}
		return vec
	default:
		return nil
	}
}
