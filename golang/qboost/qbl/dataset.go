package qbl

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//Dataset contains a feature matrix and labels in {-1, +1} for classification
//or real values for regression.
type Dataset struct {
	Features    *mat.Dense
	Labels      []float64
	RecordIds   []int
	Description *string
}

//NewDataset wraps features and labels and checks their shapes.
func NewDataset(features *mat.Dense, labels []float64) (Dataset, error) {
	ds := Dataset{Features: features, Labels: labels}
	h, _, err := ds.validatedDimensions()
	if err != nil {
		return Dataset{}, err
	}
	ds.RecordIds = makeRecordIds(h)
	return ds, nil
}

//SetDescription sets a description for a Dataset object
func (ds *Dataset) SetDescription(description string) {
	ds.Description = &description
}

//Len returns the number of records.
func (ds Dataset) Len() int {
	return len(ds.Labels)
}

//validatedDimensions checks the consistency of the dataset and returns
//the height (the number of objects) and the width (the number of features).
func (ds Dataset) validatedDimensions() (h, w int, err error) {
	if ds.Features == nil {
		return 0, 0, fmt.Errorf("nil features: %w", ErrDimensionMismatch)
	}
	h, w = ds.Features.Dims()
	if len(ds.Labels) != h {
		return 0, 0, fmt.Errorf("labels length %d is not equal to features height %d: %w", len(ds.Labels), h, ErrDimensionMismatch)
	}
	if ds.RecordIds != nil && len(ds.RecordIds) != h {
		return 0, 0, fmt.Errorf("record ids length %d is not equal to features height %d: %w", len(ds.RecordIds), h, ErrDimensionMismatch)
	}
	return h, w, nil
}

//ReadDataset reads features and labels from two npy files.
func ReadDataset(fileNameFeatures, fileNameLabels string) (Dataset, error) {
	log.Info().Str("file", fileNameFeatures).Msg("try to load features")
	features, err := ReadNpy(fileNameFeatures)
	if err != nil {
		return Dataset{}, err
	}
	log.Info().Str("file", fileNameLabels).Msg("try to load labels")
	labels, err := ReadLabelsNpy(fileNameLabels)
	if err != nil {
		return Dataset{}, err
	}
	return NewDataset(features, labels)
}

//ReadNpy reads a two dimensional float64 array from an npy file.
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read npy header of %s: %w", fileName, err)
	}

	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, fmt.Errorf("read npy data of %s: %w", fileName, err)
	}
	return denseMat, nil
}

//ReadLabelsNpy reads a one dimensional float64 array from an npy file.
func ReadLabelsNpy(fileName string) ([]float64, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []float64
	if err := npyio.Read(f, &labels); err != nil {
		return nil, fmt.Errorf("read npy labels of %s: %w", fileName, err)
	}
	return labels, nil
}

//WriteNpy writes values into an npy file.
func WriteNpy(fileName string, values []float64) error {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	if err := npyio.Write(dst, values); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

//ReadCSV reads a csv file with a header. Every column except labelColumn is a numeric feature,
//labelColumn is mapped to +1 when it equals positiveLabel and to -1 otherwise.
func ReadCSV(fileName, labelColumn, positiveLabel string) (Dataset, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return Dataset{}, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("read csv %s: %w", fileName, err)
	}
	if len(rows) < 2 {
		return Dataset{}, fmt.Errorf("csv %s has no records: %w", fileName, ErrDimensionMismatch)
	}

	header := rows[0]
	labelIndex := -1
	for idx, name := range header {
		if name == labelColumn {
			labelIndex = idx
		}
	}
	if labelIndex == -1 {
		return Dataset{}, fmt.Errorf("column %q missing in %s", labelColumn, fileName)
	}

	h := len(rows) - 1
	w := len(header) - 1
	features := mat.NewDense(h, w, nil)
	rawLabels := make([]string, h)

	for p := 0; p < h; p++ {
		row := rows[p+1]
		q := 0
		for idx, cell := range row {
			if idx == labelIndex {
				rawLabels[p] = cell
				continue
			}
			val, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("parse %s at record %d: %w", header[idx], p, err)
			}
			features.Set(p, q, val)
			q++
		}
	}

	ds, err := NewDataset(features, BinaryLabels(rawLabels, positiveLabel))
	if err != nil {
		return Dataset{}, err
	}
	ds.SetDescription(fileName)
	return ds, nil
}

//BinaryLabels maps raw class names onto {-1, +1}: positive becomes +1, everything else -1.
func BinaryLabels(raw []string, positive string) []float64 {
	labels := make([]float64, len(raw))
	for ind, val := range raw {
		if val == positive {
			labels[ind] = 1
		} else {
			labels[ind] = -1
		}
	}
	return labels
}

//TrainTestSplit shuffles records with the given seed and puts testRatio of them into the test part.
func (ds Dataset) TrainTestSplit(testRatio float64, seed int64) (train, test Dataset, err error) {
	h, w, err := ds.validatedDimensions()
	if err != nil {
		return Dataset{}, Dataset{}, err
	}
	if testRatio < 0 || testRatio >= 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("test ratio %v out of [0, 1)", testRatio)
	}

	indices := rand.New(rand.NewSource(seed)).Perm(h)
	nTest := int(float64(h) * testRatio)

	take := func(part []int) Dataset {
		labels := make([]float64, len(part))
		ids := make([]int, len(part))
		if len(part) == 0 {
			return Dataset{Features: &mat.Dense{}, Labels: labels, RecordIds: ids}
		}
		features := mat.NewDense(len(part), w, nil)
		for p, src := range part {
			features.SetRow(p, ds.Features.RawRowView(src))
			labels[p] = ds.Labels[src]
			ids[p] = ds.recordID(src)
		}
		return Dataset{Features: features, Labels: labels, RecordIds: ids}
	}

	return take(indices[nTest:]), take(indices[:nTest]), nil
}

func (ds Dataset) recordID(p int) int {
	if ds.RecordIds == nil {
		return p
	}
	return ds.RecordIds[p]
}

//SyntheticDataset generates a two dimensional data set with n records that is linearly
//separable on the first feature. The second feature is noise.
func SyntheticDataset(n int, seed int64) Dataset {
	rnd := rand.New(rand.NewSource(seed))
	features := mat.NewDense(n, 2, nil)
	labels := make([]float64, n)
	for p := 0; p < n; p++ {
		label := 1.0
		if p%2 == 1 {
			label = -1.0
		}
		features.Set(p, 0, label*(0.1+0.9*rnd.Float64()))
		features.Set(p, 1, 2*rnd.Float64()-1)
		labels[p] = label
	}
	ds := Dataset{Features: features, Labels: labels, RecordIds: makeRecordIds(n)}
	ds.SetDescription("synthetic")
	return ds
}

func makeRecordIds(rows int) []int {
	ids := make([]int, rows)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
