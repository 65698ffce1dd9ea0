package domain

// FusionMethod задает стратегию слияния модальностей
type FusionMethod string

const (
	// FusionWeightedAvg — взвешенное среднее: w*image + (1-w)*text
	FusionWeightedAvg FusionMethod = "weighted_avg"
	// FusionElementWise — поэлементное произведение векторов
	FusionElementWise FusionMethod = "element_wise"
)

func (m FusionMethod) Valid() bool {
	return m == FusionWeightedAvg || m == FusionElementWise
}

// MatchScores описывает вклад модальностей в итоговый скор
type MatchScores struct {
	ImageContribution  float64
	TextContribution   float64
	ImageTextAlignment float64
	FusionQuality      float64
}

// FusedQuery — результат слияния: единичный вектор запроса и скоры вклада
type FusedQuery struct {
	Vector      []float32
	TextVector  []float32
	ImageVector []float32
	Scores      MatchScores
	Modalities  []string
}
