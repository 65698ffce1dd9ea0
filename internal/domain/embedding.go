package domain

import "time"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет точку индекса: слитый вектор товара плюс payload
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

// NewPayload собирает payload точки. Помодальные векторы хранятся рядом со
// слитым, чтобы на запросе пересчитывать скор с весом вызывающего.
func NewPayload(p *Product, category string, textVector, imageVector []float32, modelVersion string, embeddingVersion int32) Payload {
	return Payload{
		"product_id":        p.ID,
		"title":             p.Title,
		"category":          category,
		"price":             p.Price,
		"brand":             p.Brand,
		"rating":            p.Rating,
		"image_url":         p.ImageURL,
		"text_vector":       textVector,
		"image_vector":      imageVector,
		"model_version":     modelVersion,
		"embedding_version": int64(embeddingVersion),
		"indexed_at":        time.Now().UTC().UnixNano(),
	}
}
