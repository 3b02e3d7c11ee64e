package qbl

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//StandardScaler standardizes every column to zero mean and unit variance.
//Columns with zero variance are only centered.
type StandardScaler struct {
	Mean []float64
	Std  []float64
	fit  bool
}

func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

//Fit collects population mean and standard deviation of every column of x.
func (s *StandardScaler) Fit(x *mat.Dense) error {
	h, w := x.Dims()
	if h == 0 {
		return fmt.Errorf("fit scaler on empty matrix: %w", ErrDimensionMismatch)
	}
	s.Mean = make([]float64, w)
	s.Std = make([]float64, w)
	col := make([]float64, h)
	for q := 0; q < w; q++ {
		mat.Col(col, q, x)
		s.Mean[q], s.Std[q] = stat.PopMeanStdDev(col, nil)
		if s.Std[q] == 0 {
			s.Std[q] = 1
		}
	}
	s.fit = true
	return nil
}

//Transform returns a standardized copy of x.
func (s *StandardScaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	if !s.fit {
		return nil, fmt.Errorf("standard scaler: %w", ErrNotFitted)
	}
	h, w := x.Dims()
	if w != len(s.Mean) {
		return nil, fmt.Errorf("scaler fit on %d features, got %d: %w", len(s.Mean), w, ErrDimensionMismatch)
	}
	out := mat.NewDense(h, w, nil)
	out.Apply(func(_, q int, v float64) float64 {
		return (v - s.Mean[q]) / s.Std[q]
	}, x)
	return out, nil
}

func (s *StandardScaler) FitTransform(x *mat.Dense) (*mat.Dense, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

//Normalize scales every row of x to unit euclidean norm. Rows of zeros are left as they are.
func Normalize(x *mat.Dense) *mat.Dense {
	h, w := x.Dims()
	out := mat.NewDense(h, w, nil)
	out.Copy(x)
	for p := 0; p < h; p++ {
		row := out.RawRowView(p)
		norm := floats.Norm(row, 2)
		if norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return out
}

//Preprocess standardizes and then normalizes x. The order matters.
func Preprocess(x *mat.Dense) (*mat.Dense, error) {
	standardized, err := NewStandardScaler().FitTransform(x)
	if err != nil {
		return nil, err
	}
	return Normalize(standardized), nil
}
