package qbl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func wideRangeRegressionData() (*mat.Dense, []float64) {
	features := mat.NewDense(40, 1, nil)
	target := make([]float64, 40)
	for p := range target {
		x := float64(p)
		features.Set(p, 0, x)
		target[p] = 10 + x*x/4
	}
	return features, target
}

func quadraticRegressionData() (*mat.Dense, []float64) {
	features := columnMatrix(1, 2, 3, 4, 5, 6, 7, 8)
	target := make([]float64, 8)
	for p := range target {
		x := features.At(p, 0)
		target[p] = x * x / 64
	}
	return features, target
}

func TestNewWeakClassifiersSeeds(t *testing.T) {
	first := NewWeakClassifiers(5, 2, WithSeed(3))
	second := NewWeakClassifiers(5, 2, WithSeed(3))

	require.Len(t, first.Estimators, 5)
	for ind, estimator := range first.Estimators {
		assert.Equal(t, "gini", estimator.Loss)
		assert.Equal(t, 2, estimator.MaxDepth)
		assert.GreaterOrEqual(t, estimator.Seed, int64(1000000))
		assert.Less(t, estimator.Seed, int64(10000000))
		assert.Equal(t, second.Estimators[ind].Seed, estimator.Seed)
	}
	assert.Equal(t, NotFitted, first.State)
	assert.Equal(t, "mse", NewWeakRegressor(1, 1).Estimators[0].Loss)
}

func TestWeakClassifiersFitOnSyntheticData(t *testing.T) {
	ds := SyntheticDataset(20, 1)
	ensemble := NewWeakClassifiers(3, 1, WithSeed(7))

	_, err := ensemble.Predict(ds.Features)
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, ensemble.Fit(ds.Features, ds.Labels))
	assert.Equal(t, Fitted, ensemble.State)
	assert.Len(t, ensemble.EstimatorWeights, 3)

	prediction, err := ensemble.Predict(ds.Features)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, Accuracy(ds.Labels, prediction), 0.95)
}

func TestWeakClassifiersZeroErrorIsFloored(t *testing.T) {
	ensemble := NewWeakClassifiers(2, 1, WithSeed(1))
	require.NoError(t, ensemble.Fit(columnMatrix(-2, -1, 1, 2), []float64{-1, -1, 1, 1}))

	for _, w := range ensemble.EstimatorWeights {
		assert.False(t, math.IsInf(w, 0))
		assert.InDelta(t, AdaBoostWeight(1e-20), w, 1e-9)
	}
}

func TestAdaBoostWeightSign(t *testing.T) {
	for _, eps := range []float64{0.01, 0.2, 0.49} {
		assert.Greater(t, AdaBoostWeight(eps), 0.0)
		assert.InDelta(t, 0.5*math.Log((1-eps)/eps), AdaBoostWeight(eps), 1e-12)
	}
	assert.Equal(t, 0.0, AdaBoostWeight(0.5))
	for _, eps := range []float64{0.51, 0.8, 0.99} {
		assert.Less(t, AdaBoostWeight(eps), 0.0)
	}
}

func TestReweightKeepsDistribution(t *testing.T) {
	distribution := []float64{0.25, 0.25, 0.25, 0.25}
	target := []float64{1, -1, 1, -1}
	prediction := []float64{1, 1, -1, -1}

	for round := 0; round < 5; round++ {
		require.NoError(t, reweight(distribution, 0.7, target, prediction))
		assert.InDelta(t, 1.0, floats.Sum(distribution), 1e-12)
	}
	assert.Greater(t, distribution[1], distribution[0])
	assert.Greater(t, distribution[2], distribution[3])
}

func TestReweightLargeExponents(t *testing.T) {
	distribution := []float64{0.25, 0.25, 0.25, 0.25}
	target := []float64{400, 390, 10, 12}
	prediction := []float64{380, 380, 11, 11}

	require.NoError(t, reweight(distribution, -0.9, target, prediction))
	for _, d := range distribution {
		assert.False(t, math.IsNaN(d) || math.IsInf(d, 0))
	}
	assert.InDelta(t, 1.0, floats.Sum(distribution), 1e-12)
	assert.InDelta(t, 1.0, distribution[0], 1e-12)
}

func TestReweightDegenerate(t *testing.T) {
	target := []float64{1, -1}
	prediction := []float64{1, 1}

	err := reweight([]float64{0.5, 0.5}, math.Inf(-1), target, prediction)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	err = reweight([]float64{0.5, 0.5}, math.NaN(), target, prediction)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	err = reweight([]float64{0.5, 0.5}, 0.3, target, []float64{math.NaN(), 1})
	assert.ErrorIs(t, err, ErrDegenerateInput)

	err = reweight([]float64{0, 0}, 0.3, target, prediction)
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

func TestWeakRegressorWideRangeTargets(t *testing.T) {
	features, target := wideRangeRegressionData()
	ensemble := NewWeakRegressor(5, 2, WithSeed(1))
	require.NoError(t, ensemble.Fit(features, target))

	for ind, w := range ensemble.EstimatorWeights {
		assert.False(t, math.IsNaN(w) || math.IsInf(w, 0), "estimator %d weight %v", ind, w)
	}
	predictions, err := ensemble.EstimatorPredictions(features)
	require.NoError(t, err)
	for _, val := range predictions.RawMatrix().Data {
		assert.False(t, math.IsNaN(val))
		assert.GreaterOrEqual(t, val, 0.0)
		assert.LessOrEqual(t, val, target[len(target)-1])
	}
}

func TestWeightPenalty(t *testing.T) {
	penalty, err := WeightPenalty([]float64{0, 0, 0, 0}, []float64{0, 0.05, 0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1}, penalty)

	_, err = WeightPenalty([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = WeightPenalty([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestWeakRegressorDegenerateResiduals(t *testing.T) {
	ensemble := NewWeakRegressor(2, 1, WithSeed(1))
	err := ensemble.Fit(columnMatrix(1, 2, 3, 4), []float64{5, 5, 5, 5})

	assert.ErrorIs(t, err, ErrDegenerateInput)
	assert.Equal(t, NotFitted, ensemble.State)
}

func TestWeakRegressorPredictsSigns(t *testing.T) {
	features, target := quadraticRegressionData()
	ensemble := NewWeakRegressor(3, 1, WithSeed(2))
	require.NoError(t, ensemble.Fit(features, target))

	prediction, err := ensemble.Predict(features)
	require.NoError(t, err)
	for _, val := range prediction {
		assert.Contains(t, []float64{-1, 0, 1}, val)
	}

	votes, err := ensemble.DecisionFunction(features)
	require.NoError(t, err)
	for ind, val := range votes {
		assert.Equal(t, sign(val), prediction[ind])
	}
}

func TestEstimatorPredictionsShape(t *testing.T) {
	ds := SyntheticDataset(10, 2)
	ensemble := NewWeakClassifiers(4, 1, WithSeed(2))
	require.NoError(t, ensemble.Fit(ds.Features, ds.Labels))

	predictions, err := ensemble.EstimatorPredictions(ds.Features)
	require.NoError(t, err)
	k, n := predictions.Dims()
	assert.Equal(t, 4, k)
	assert.Equal(t, 10, n)

	first, err := ensemble.Estimators[0].Predict(ds.Features)
	require.NoError(t, err)
	assert.Equal(t, first, mat.Row(nil, 0, predictions))
}

func TestWeakEnsembleCopy(t *testing.T) {
	ds := SyntheticDataset(20, 3)
	ensemble := NewWeakClassifiers(3, 2, WithSeed(4))
	require.NoError(t, ensemble.Fit(ds.Features, ds.Labels))

	clone := ensemble.Copy()
	assert.Equal(t, ensemble, clone)

	clone.EstimatorWeights[0] = -100
	clone.Estimators[0].LeafNodes[0].Prediction = 42
	assert.NotEqual(t, -100.0, ensemble.EstimatorWeights[0])
	assert.NotEqual(t, 42.0, ensemble.Estimators[0].LeafNodes[0].Prediction)

	unfitted := NewWeakClassifiers(2, 1).Copy()
	assert.Nil(t, unfitted.EstimatorWeights)
	assert.Equal(t, NotFitted, unfitted.State)
}

func TestWeakEnsembleParallelScanMatchesSerial(t *testing.T) {
	ds := SyntheticDataset(40, 5)
	serial := NewWeakClassifiers(3, 3, WithSeed(9))
	parallel := NewWeakClassifiers(3, 3, WithSeed(9), WithThreads(4))
	require.NoError(t, serial.Fit(ds.Features, ds.Labels))
	require.NoError(t, parallel.Fit(ds.Features, ds.Labels))

	assert.Equal(t, serial.EstimatorWeights, parallel.EstimatorWeights)
	for ind := range serial.Estimators {
		assert.Equal(t, serial.Estimators[ind].TreeNodes, parallel.Estimators[ind].TreeNodes)
	}
}
