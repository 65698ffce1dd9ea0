package converter

type ProductInfoRedisModel struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	CategoryName string  `json:"category_name"`
	Price        int64   `json:"price"`
	Brand        string  `json:"brand"`
	Rating       float64 `json:"rating"`
	ImageURL     string  `json:"image_url"`
}
