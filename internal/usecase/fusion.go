package usecase

import (
	"math"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/viterin/vek/vek32"
)

// normEpsilon — порог, ниже которого норма слитого вектора считается вырожденной.
const normEpsilon = 1e-6

// FusionEngine сливает текстовый вектор и вектор изображения в один
// единичный вектор запроса. Обе модальности живут в одном пространстве,
// поэтому скалярное произведение единичных векторов равно косинусной близости.
type FusionEngine struct{}

func NewFusionEngine() *FusionEngine {
	return &FusionEngine{}
}

// Fuse сливает векторы модальностей с весом изображения weight.
// Отсутствующая модальность передается nil-срезом; единственная присутствующая
// модальность возвращается без изменений. Вес вне [0,1] прижимается к границе.
func (f *FusionEngine) Fuse(textVec, imageVec []float32, weight float64, method domain.FusionMethod) (*domain.FusedQuery, error) {
	hasText := len(textVec) > 0
	hasImage := len(imageVec) > 0

	if !hasText && !hasImage {
		return nil, e.ErrNoQueryModalities
	}

	if hasText && !hasImage {
		return &domain.FusedQuery{
			Vector:     textVec,
			TextVector: textVec,
			Scores:     domain.MatchScores{TextContribution: 1},
			Modalities: []string{ModalityText},
		}, nil
	}

	if hasImage && !hasText {
		return &domain.FusedQuery{
			Vector:      imageVec,
			ImageVector: imageVec,
			Scores:      domain.MatchScores{ImageContribution: 1},
			Modalities:  []string{ModalityImage},
		}, nil
	}

	if len(textVec) != len(imageVec) {
		return nil, e.ErrVectorSizeMismatch
	}

	w := clampWeight(weight)

	var (
		fused []float32
		err   error
	)
	switch method {
	case domain.FusionElementWise:
		fused, err = fuseElementWise(textVec, imageVec)
	default:
		fused, err = fuseWeightedAvg(textVec, imageVec, w)
	}
	if err != nil {
		return nil, err
	}

	alignment := (float64(vek32.Dot(imageVec, textVec)) + 1) / 2
	quality := (w*float64(vek32.Dot(fused, imageVec)) + (1-w)*float64(vek32.Dot(fused, textVec)) + 1) / 2

	return &domain.FusedQuery{
		Vector:      fused,
		TextVector:  textVec,
		ImageVector: imageVec,
		Scores: domain.MatchScores{
			ImageContribution:  w,
			TextContribution:   1 - w,
			ImageTextAlignment: clamp01(alignment),
			FusionQuality:      clamp01(quality),
		},
		Modalities: []string{ModalityText, ModalityImage},
	}, nil
}

// MeanPool усредняет векторы изображений одного товара и нормирует результат.
// Единственный вектор возвращается без изменений.
func (f *FusionEngine) MeanPool(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, e.ErrEmptyVectors
	}
	if len(vectors) == 1 {
		return vectors[0], nil
	}

	size := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != size {
			return nil, e.ErrVectorSizeMismatch
		}
	}

	pooled := make([]float32, size)
	for _, v := range vectors {
		pooled = vek32.Add(pooled, v)
	}
	pooled = vek32.DivNumber(pooled, float32(len(vectors)))

	norm := vek32.Norm(pooled)
	if norm < normEpsilon {
		return nil, e.ErrDegenerateFusion
	}

	return vek32.DivNumber(pooled, norm), nil
}

// fuseWeightedAvg строит normalize(w*image + (1-w)*text). Если веса погасили
// вектор до нуля, запрос пересобирается невзвешенным средним модальностей.
func fuseWeightedAvg(textVec, imageVec []float32, w float64) ([]float32, error) {
	fused := vek32.Add(
		vek32.MulNumber(imageVec, float32(w)),
		vek32.MulNumber(textVec, float32(1-w)),
	)

	norm := vek32.Norm(fused)
	if norm < normEpsilon {
		fused = vek32.MulNumber(vek32.Add(imageVec, textVec), 0.5)
		norm = vek32.Norm(fused)
		if norm < normEpsilon {
			return nil, e.ErrDegenerateFusion
		}
	}

	return vek32.DivNumber(fused, norm), nil
}

// fuseElementWise строит normalize(image ⊙ text). Подчеркивает измерения,
// выраженные в обеих модальностях сразу; вес не участвует.
func fuseElementWise(textVec, imageVec []float32) ([]float32, error) {
	fused := vek32.Mul(imageVec, textVec)

	norm := vek32.Norm(fused)
	if norm < normEpsilon {
		return nil, e.ErrDegenerateFusion
	}

	return vek32.DivNumber(fused, norm), nil
}

func clampWeight(w float64) float64 {
	if math.IsNaN(w) {
		return 0.5
	}
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
