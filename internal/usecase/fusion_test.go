package usecase

import (
	"math"
	"testing"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseWeightedAverage(t *testing.T) {
	engine := NewFusionEngine()

	textVec := []float32{0.6, 0.8}
	imageVec := []float32{0.8, 0.6}

	fused, err := engine.Fuse(textVec, imageVec, 0.5, domain.FusionWeightedAvg)
	require.NoError(t, err)

	assert.InDelta(t, 0.7071, float64(fused.Vector[0]), 1e-3)
	assert.InDelta(t, 0.7071, float64(fused.Vector[1]), 1e-3)

	norm := math.Hypot(float64(fused.Vector[0]), float64(fused.Vector[1]))
	assert.InDelta(t, 1.0, norm, 1e-5)

	assert.Equal(t, []string{ModalityText, ModalityImage}, fused.Modalities)
	assert.InDelta(t, 0.5, fused.Scores.ImageContribution, 1e-9)
	assert.InDelta(t, 0.5, fused.Scores.TextContribution, 1e-9)
	// dot(image, text) = 0.96, alignment = (0.96+1)/2
	assert.InDelta(t, 0.98, fused.Scores.ImageTextAlignment, 1e-3)
}

func TestFuseSelfIsParallel(t *testing.T) {
	engine := NewFusionEngine()

	// Fusing a vector with itself must keep its direction for every weight:
	// [3,4] comes back as the unit vector [0.6,0.8].
	vec := []float32{3, 4}
	for _, w := range []float64{0, 0.25, 0.5, 0.75, 1} {
		fused, err := engine.Fuse(vec, vec, w, domain.FusionWeightedAvg)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, float64(fused.Vector[0]), 1e-5, "weight %v", w)
		assert.InDelta(t, 0.8, float64(fused.Vector[1]), 1e-5, "weight %v", w)
	}
}

func TestFuseWeightIsClamped(t *testing.T) {
	engine := NewFusionEngine()

	textVec := []float32{0.6, 0.8}
	imageVec := []float32{0.8, 0.6}

	// Weight above 1 collapses to pure image
	fused, err := engine.Fuse(textVec, imageVec, 1.5, domain.FusionWeightedAvg)
	require.NoError(t, err)
	assert.InDelta(t, float64(imageVec[0]), float64(fused.Vector[0]), 1e-5)
	assert.InDelta(t, float64(imageVec[1]), float64(fused.Vector[1]), 1e-5)
	assert.Equal(t, 1.0, fused.Scores.ImageContribution)

	// Weight below 0 collapses to pure text
	fused, err = engine.Fuse(textVec, imageVec, -0.3, domain.FusionWeightedAvg)
	require.NoError(t, err)
	assert.InDelta(t, float64(textVec[0]), float64(fused.Vector[0]), 1e-5)
	assert.InDelta(t, float64(textVec[1]), float64(fused.Vector[1]), 1e-5)
	assert.Equal(t, 0.0, fused.Scores.ImageContribution)
}

func TestFuseSingleModalityPassthrough(t *testing.T) {
	engine := NewFusionEngine()

	textVec := []float32{0.6, 0.8}
	fused, err := engine.Fuse(textVec, nil, 0.9, domain.FusionWeightedAvg)
	require.NoError(t, err)
	assert.Equal(t, textVec, fused.Vector)
	assert.Equal(t, []string{ModalityText}, fused.Modalities)
	assert.Equal(t, 1.0, fused.Scores.TextContribution)
	assert.Equal(t, 0.0, fused.Scores.ImageContribution)

	imageVec := []float32{0.8, 0.6}
	fused, err = engine.Fuse(nil, imageVec, 0.1, domain.FusionWeightedAvg)
	require.NoError(t, err)
	assert.Equal(t, imageVec, fused.Vector)
	assert.Equal(t, []string{ModalityImage}, fused.Modalities)
	assert.Equal(t, 1.0, fused.Scores.ImageContribution)
}

func TestFuseNoModalities(t *testing.T) {
	engine := NewFusionEngine()

	_, err := engine.Fuse(nil, nil, 0.5, domain.FusionWeightedAvg)
	assert.ErrorIs(t, err, e.ErrNoQueryModalities)
}

func TestFuseSizeMismatch(t *testing.T) {
	engine := NewFusionEngine()

	_, err := engine.Fuse([]float32{1, 0}, []float32{1, 0, 0}, 0.5, domain.FusionWeightedAvg)
	assert.ErrorIs(t, err, e.ErrVectorSizeMismatch)
}

func TestFuseDegenerateFallsBackToUnweightedAverage(t *testing.T) {
	engine := NewFusionEngine()

	// (1/3)*image + (2/3)*text cancels out, the plain average does not
	textVec := []float32{1, 0}
	imageVec := []float32{-2, 0}

	fused, err := engine.Fuse(textVec, imageVec, 1.0/3.0, domain.FusionWeightedAvg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, float64(fused.Vector[0]), 1e-5)
	assert.InDelta(t, 0.0, float64(fused.Vector[1]), 1e-5)
}

func TestFuseDegenerateBothWays(t *testing.T) {
	engine := NewFusionEngine()

	// Opposite vectors zero out both the weighted and the unweighted average
	_, err := engine.Fuse([]float32{1, 0}, []float32{-1, 0}, 0.5, domain.FusionWeightedAvg)
	assert.ErrorIs(t, err, e.ErrDegenerateFusion)
}

func TestFuseElementWise(t *testing.T) {
	engine := NewFusionEngine()

	fused, err := engine.Fuse([]float32{0.6, 0.8}, []float32{0.8, 0.6}, 0.5, domain.FusionElementWise)
	require.NoError(t, err)
	// Hadamard product [0.48, 0.48] normalized
	assert.InDelta(t, 0.7071, float64(fused.Vector[0]), 1e-3)
	assert.InDelta(t, 0.7071, float64(fused.Vector[1]), 1e-3)

	// Orthogonal vectors have a zero product and no fallback
	_, err = engine.Fuse([]float32{1, 0}, []float32{0, 1}, 0.5, domain.FusionElementWise)
	assert.ErrorIs(t, err, e.ErrDegenerateFusion)
}

func TestMeanPool(t *testing.T) {
	engine := NewFusionEngine()

	single := []float32{0.3, 0.4}
	pooled, err := engine.MeanPool([][]float32{single})
	require.NoError(t, err)
	assert.Equal(t, single, pooled)

	pooled, err = engine.MeanPool([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.7071, float64(pooled[0]), 1e-3)
	assert.InDelta(t, 0.7071, float64(pooled[1]), 1e-3)

	_, err = engine.MeanPool(nil)
	assert.ErrorIs(t, err, e.ErrEmptyVectors)

	_, err = engine.MeanPool([][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, e.ErrVectorSizeMismatch)

	_, err = engine.MeanPool([][]float32{{1, 0}, {-1, 0}})
	assert.ErrorIs(t, err, e.ErrDegenerateFusion)
}

func TestClampWeight(t *testing.T) {
	assert.Equal(t, 0.5, clampWeight(math.NaN()))
	assert.Equal(t, 0.0, clampWeight(-0.1))
	assert.Equal(t, 1.0, clampWeight(1.1))
	assert.Equal(t, 0.7, clampWeight(0.7))
}
