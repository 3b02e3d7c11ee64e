package qbl

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	//ProblemTypeQUBO is the only problem type the sampling service accepts.
	ProblemTypeQUBO = "qubo"

	StatusCompleted = "completed"
	StatusFailed    = "failed"

	//MaxProblemVariables bounds the problems accepted from the wire.
	MaxProblemVariables = 1024
)

//ProblemTerm is one QUBO coefficient on the wire.
type ProblemTerm struct {
	I int     `json:"i"`
	J int     `json:"j"`
	V float64 `json:"v"`
}

//ProblemParams carries the sampler options on the wire.
type ProblemParams struct {
	NumReads                  int     `json:"num_reads,omitempty"`
	AutoScale                 bool    `json:"auto_scale"`
	NumSpinReversalTransforms int     `json:"num_spin_reversal_transforms,omitempty"`
	AnnealingTime             float64 `json:"annealing_time,omitempty"`
}

//ProblemRequest is the body of POST /problems.
type ProblemRequest struct {
	ID           string        `json:"id"`
	Label        string        `json:"label,omitempty"`
	Solver       string        `json:"solver,omitempty"`
	Type         string        `json:"type"`
	NumVariables int           `json:"num_variables"`
	Terms        []ProblemTerm `json:"terms"`
	Params       ProblemParams `json:"params"`
}

//ProblemResponse is the answer of the sampling service. Samples are ordered best first.
type ProblemResponse struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Samples        [][]int   `json:"samples,omitempty"`
	Energies       []float64 `json:"energies,omitempty"`
	NumOccurrences []int     `json:"num_occurrences,omitempty"`
	Error          string    `json:"error,omitempty"`
}

//NewProblemRequest encodes a QUBO and the options under a fresh problem id.
func NewProblemRequest(q QUBO, solver string, opts SamplerOptions) ProblemRequest {
	terms := q.Terms()
	wireTerms := make([]ProblemTerm, len(terms))
	for ind, term := range terms {
		wireTerms[ind] = ProblemTerm{I: term.I, J: term.J, V: term.Value}
	}
	return ProblemRequest{
		ID:           uuid.New().String(),
		Label:        opts.Label,
		Solver:       solver,
		Type:         ProblemTypeQUBO,
		NumVariables: q.NumVariables(),
		Terms:        wireTerms,
		Params: ProblemParams{
			NumReads:                  opts.NumReads,
			AutoScale:                 opts.AutoScale,
			NumSpinReversalTransforms: opts.NumSpinReversalTransforms,
			AnnealingTime:             opts.AnnealingTime,
		},
	}
}

//QUBO decodes the problem back into a QUBO, checking indices against NumVariables.
func (req ProblemRequest) QUBO() (QUBO, error) {
	if req.Type != ProblemTypeQUBO {
		return nil, fmt.Errorf("problem type %q is not supported", req.Type)
	}
	if req.NumVariables > MaxProblemVariables {
		return nil, fmt.Errorf("%d variables, at most %d are accepted: %w", req.NumVariables, MaxProblemVariables, ErrTooManyVariables)
	}
	terms := make([]Term, len(req.Terms))
	for ind, term := range req.Terms {
		if term.I < 0 || term.J < 0 || term.I >= req.NumVariables || term.J >= req.NumVariables {
			return nil, fmt.Errorf("term (%d, %d) outside of %d variables: %w", term.I, term.J, req.NumVariables, ErrDimensionMismatch)
		}
		terms[ind] = Term{I: term.I, J: term.J, Value: term.V}
	}
	return QUBOFromTerms(terms), nil
}

//Options returns the sampler options of the request.
func (req ProblemRequest) Options() SamplerOptions {
	return SamplerOptions{
		NumReads:                  req.Params.NumReads,
		AutoScale:                 req.Params.AutoScale,
		NumSpinReversalTransforms: req.Params.NumSpinReversalTransforms,
		AnnealingTime:             req.Params.AnnealingTime,
		Label:                     req.Label,
	}
}

//NewProblemResponse encodes a completed sample set.
func NewProblemResponse(id string, set *SampleSet) (ProblemResponse, error) {
	samples, err := set.Samples()
	if err != nil {
		return ProblemResponse{}, err
	}
	return ProblemResponse{
		ID:             id,
		Status:         StatusCompleted,
		Samples:        samples,
		Energies:       set.Energies,
		NumOccurrences: set.NumOccurrences,
	}, nil
}

//FailedProblemResponse reports an error for the problem id.
func FailedProblemResponse(id string, err error) ProblemResponse {
	return ProblemResponse{ID: id, Status: StatusFailed, Error: err.Error()}
}

//SampleSet decodes a completed response. Failed or empty responses are errors.
func (resp ProblemResponse) SampleSet() (*SampleSet, error) {
	if resp.Status != StatusCompleted {
		return nil, fmt.Errorf("problem %s %s: %s: %w", resp.ID, resp.Status, resp.Error, ErrSampler)
	}
	if len(resp.Samples) == 0 {
		return nil, fmt.Errorf("problem %s: %w", resp.ID, ErrEmptySampleSet)
	}
	energies := resp.Energies
	if energies == nil {
		energies = make([]float64, len(resp.Samples))
	}
	return NewSampleSet(resp.Samples, energies, resp.NumOccurrences)
}
