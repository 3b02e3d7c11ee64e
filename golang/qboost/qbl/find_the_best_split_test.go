package qbl

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newClassificationData(features *mat.Dense, target []float64) *treeData {
	h, _ := features.Dims()
	classes := uniqueSorted(target)
	data := &treeData{
		features:   features,
		target:     target,
		classIndex: make([]int, h),
		weight:     make([]float64, h),
		loss:       GiniLoss{},
		width:      len(classes),
	}
	for p, val := range target {
		for ind, class := range classes {
			if class == val {
				data.classIndex[p] = ind
			}
		}
		data.weight[p] = 1
	}
	return data
}

func TestColumnArgsortIsStable(t *testing.T) {
	features := columnMatrix(3, 1, 2, 1)
	assert.Equal(t, []int{1, 3, 2, 0}, columnArgsort(features, []int{0, 1, 2, 3}, 0))
	assert.Equal(t, []int{3, 2, 0}, columnArgsort(features, []int{0, 2, 3}, 0))
}

func TestIterateSplitsStopsOnlyBetweenClusters(t *testing.T) {
	features := columnMatrix(1, 1, 2, 3, 3)
	data := newClassificationData(features, []float64{-1, -1, 1, 1, 1})
	order := columnArgsort(features, makeRecordIds(5), 0)

	down, total := iterateSplits(forwardSweep(5), data, 0, order)
	require.Len(t, down, 2)
	assert.Equal(t, []float64{2, 0}, down[0].stats)
	assert.Equal(t, 1.0, down[0].InterFeature)
	assert.Equal(t, []float64{2, 1}, down[1].stats)
	assert.Equal(t, []float64{2, 3}, total)

	up, _ := iterateSplits(backwardSweep(5), data, 0, order)
	require.Len(t, up, 2)
	assert.Equal(t, []float64{0, 2}, up[0].stats)
	assert.Equal(t, 3.0, up[0].InterFeature)
}

func TestTheBestSplitPicksSeparatingFeature(t *testing.T) {
	features := mat.NewDense(6, 2, []float64{
		5, -1,
		1, -2,
		4, -3,
		2, 1,
		6, 2,
		3, 3,
	})
	data := newClassificationData(features, []float64{-1, -1, -1, 1, 1, 1})

	split := theBestSplit(data, makeRecordIds(6), []int{0, 1}, 1)
	require.NotNil(t, split)
	assert.Equal(t, 1, split.featureIndex)
	assert.Equal(t, 0.0, split.threshold)
	assert.Equal(t, 0.0, split.bestValue)
	assert.Equal(t, 6, split.numberOfObjects)
}

func TestTheBestSplitThreadsAgree(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	h, w := 50, 6
	features := mat.NewDense(h, w, nil)
	target := make([]float64, h)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			features.Set(p, q, rnd.NormFloat64())
		}
		target[p] = 1
		if features.At(p, 2)+0.3*features.At(p, 4) < 0 {
			target[p] = -1
		}
	}
	data := newClassificationData(features, target)
	order := rnd.Perm(w)

	single := theBestSplit(data, makeRecordIds(h), order, 1)
	parallel := theBestSplit(data, makeRecordIds(h), order, 4)
	require.NotNil(t, single)
	require.NotNil(t, parallel)
	assert.Equal(t, *single, *parallel)
}

func TestTheBestSplitWithoutCandidates(t *testing.T) {
	data := newClassificationData(columnMatrix(2, 2, 2), []float64{-1, 1, 1})
	assert.Nil(t, theBestSplit(data, makeRecordIds(3), []int{0}, 1))
}

func TestSweepDirections(t *testing.T) {
	collect := func(s *sweep) []int {
		var values []int
		for pos, ok := s.next(); ok; pos, ok = s.next() {
			values = append(values, pos)
		}
		return values
	}
	assert.Equal(t, []int{0, 1, 2}, collect(forwardSweep(3)))
	assert.Equal(t, []int{2, 1, 0}, collect(backwardSweep(3)))
	assert.Empty(t, collect(forwardSweep(0)))
	assert.Empty(t, collect(backwardSweep(0)))
}
