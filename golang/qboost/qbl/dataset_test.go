package qbl

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeFeaturesNpy(t *testing.T, fileName string, features *mat.Dense) {
	t.Helper()
	f, err := os.Create(fileName)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, npyio.Write(f, features))
}

func TestReadDatasetFromNpy(t *testing.T) {
	dir := t.TempDir()
	featuresFile := filepath.Join(dir, "features.npy")
	labelsFile := filepath.Join(dir, "labels.npy")

	features := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	writeFeaturesNpy(t, featuresFile, features)
	require.NoError(t, WriteNpy(labelsFile, []float64{1, -1, 1}))

	ds, err := ReadDataset(featuresFile, labelsFile)
	require.NoError(t, err)
	assert.True(t, mat.Equal(features, ds.Features))
	assert.Equal(t, []float64{1, -1, 1}, ds.Labels)
	assert.Equal(t, []int{0, 1, 2}, ds.RecordIds)
	assert.Equal(t, 3, ds.Len())
}

func TestReadDatasetShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	featuresFile := filepath.Join(dir, "features.npy")
	labelsFile := filepath.Join(dir, "labels.npy")

	writeFeaturesNpy(t, featuresFile, mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, WriteNpy(labelsFile, []float64{1, -1}))

	_, err := ReadDataset(featuresFile, labelsFile)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ReadDataset(filepath.Join(dir, "missing.npy"), labelsFile)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "iris.csv")
	content := "a,label,b\n1.5,yes,2\n-1,no,0.25\n3,yes,4\n"
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0o644))

	ds, err := ReadCSV(fileName, "label", "yes")
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(3, 2, []float64{1.5, 2, -1, 0.25, 3, 4}), ds.Features))
	assert.Equal(t, []float64{1, -1, 1}, ds.Labels)
	require.NotNil(t, ds.Description)
	assert.Equal(t, fileName, *ds.Description)

	_, err = ReadCSV(fileName, "target", "yes")
	assert.Error(t, err)
}

func TestReadCSVBadValue(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(fileName, []byte("a,label\nx,yes\n"), 0o644))

	_, err := ReadCSV(fileName, "label", "yes")
	assert.Error(t, err)
}

func TestBinaryLabels(t *testing.T) {
	assert.Equal(t, []float64{1, -1, -1, 1}, BinaryLabels([]string{"M", "B", "X", "M"}, "M"))
}

func TestTrainTestSplit(t *testing.T) {
	ds := SyntheticDataset(10, 1)
	train, test, err := ds.TrainTestSplit(0.3, 7)
	require.NoError(t, err)

	assert.Equal(t, 7, train.Len())
	assert.Equal(t, 3, test.Len())

	ids := append(append([]int(nil), train.RecordIds...), test.RecordIds...)
	sort.Ints(ids)
	assert.Equal(t, makeRecordIds(10), ids)

	for p, id := range test.RecordIds {
		assert.Equal(t, ds.Labels[id], test.Labels[p])
		assert.Equal(t, ds.Features.RawRowView(id), test.Features.RawRowView(p))
	}

	again, _, err := ds.TrainTestSplit(0.3, 7)
	require.NoError(t, err)
	assert.Equal(t, train.RecordIds, again.RecordIds)
}

func TestTrainTestSplitEdges(t *testing.T) {
	ds := SyntheticDataset(4, 1)

	train, test, err := ds.TrainTestSplit(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, train.Len())
	assert.Equal(t, 0, test.Len())

	_, _, err = ds.TrainTestSplit(1, 1)
	assert.Error(t, err)
}

func TestSyntheticDataset(t *testing.T) {
	ds := SyntheticDataset(30, 2)
	require.NotNil(t, ds.Description)
	assert.Equal(t, "synthetic", *ds.Description)

	h, w := ds.Features.Dims()
	assert.Equal(t, 30, h)
	assert.Equal(t, 2, w)
	for p, label := range ds.Labels {
		assert.Greater(t, label*ds.Features.At(p, 0), 0.0)
	}
}
