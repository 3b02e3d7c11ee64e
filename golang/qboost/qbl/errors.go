package qbl

import "errors"

var (
	//ErrNotFitted is returned when a model is used for prediction before Fit succeeded.
	ErrNotFitted = errors.New("not fitted")

	//ErrDegenerateInput is returned when residual statistics cannot be normalised
	//because every residual is identical, or when boosting weights stop being finite.
	ErrDegenerateInput = errors.New("degenerate input")

	//ErrDimensionMismatch reports inconsistent shapes of features, labels or weights.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	//ErrEmptySampleSet is returned when a sampler produced no solutions.
	ErrEmptySampleSet = errors.New("empty sample set")

	//ErrTooManyVariables is returned for problems larger than a solver or the wire accepts.
	ErrTooManyVariables = errors.New("too many variables")

	//ErrSampler wraps failures reported by a QUBO sampler.
	ErrSampler = errors.New("sampler failure")
)
