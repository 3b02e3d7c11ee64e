package qbl

import (
	"context"
	"fmt"
	"sort"

	"gorgonia.org/tensor"
)

//SamplerOptions are the settings a QUBO sampler recognises. Zero values leave the sampler defaults.
type SamplerOptions struct {
	NumReads                  int     `json:"num_reads,omitempty"`
	AutoScale                 bool    `json:"auto_scale,omitempty"`
	NumSpinReversalTransforms int     `json:"num_spin_reversal_transforms,omitempty"`
	AnnealingTime             float64 `json:"annealing_time,omitempty"` // microseconds
	Label                     string  `json:"label,omitempty"`
}

//Sampler minimises a QUBO and returns candidate assignments, the best one first.
type Sampler interface {
	SampleQUBO(ctx context.Context, q QUBO, opts SamplerOptions) (*SampleSet, error)
}

//SampleSet is the ordered result of a sampler: one 0/1 row per distinct read.
type SampleSet struct {
	samples        *tensor.Dense
	numVariables   int
	Energies       []float64
	NumOccurrences []int
}

//NewSampleSet validates the rows and stores them in the order given.
//A nil occurrences slice counts every row once.
func NewSampleSet(samples [][]int, energies []float64, occurrences []int) (*SampleSet, error) {
	if len(energies) != len(samples) {
		return nil, fmt.Errorf("%d samples, %d energies: %w", len(samples), len(energies), ErrDimensionMismatch)
	}
	if occurrences == nil {
		occurrences = make([]int, len(samples))
		for ind := range occurrences {
			occurrences[ind] = 1
		}
	}
	if len(occurrences) != len(samples) {
		return nil, fmt.Errorf("%d samples, %d occurrence counts: %w", len(samples), len(occurrences), ErrDimensionMismatch)
	}

	set := &SampleSet{
		Energies:       append([]float64(nil), energies...),
		NumOccurrences: append([]int(nil), occurrences...),
	}
	if len(samples) == 0 {
		return set, nil
	}

	set.numVariables = len(samples[0])
	if set.numVariables == 0 {
		return nil, fmt.Errorf("samples without variables: %w", ErrDimensionMismatch)
	}
	set.samples = tensor.New(tensor.WithShape(len(samples), set.numVariables), tensor.Of(tensor.Float64))
	for row, sample := range samples {
		if len(sample) != set.numVariables {
			return nil, fmt.Errorf("sample %d has %d variables, expected %d: %w", row, len(sample), set.numVariables, ErrDimensionMismatch)
		}
		for col, val := range sample {
			if val != 0 && val != 1 {
				return nil, fmt.Errorf("sample %d variable %d is %d, not binary: %w", row, col, val, ErrSampler)
			}
			if err := set.samples.SetAt(float64(val), row, col); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

//Len is the number of distinct samples.
func (set *SampleSet) Len() int {
	return len(set.Energies)
}

//NumVariables is the length of every sample.
func (set *SampleSet) NumVariables() int {
	return set.numVariables
}

//Sample returns the i-th assignment.
func (set *SampleSet) Sample(i int) ([]int, error) {
	if i < 0 || i >= set.Len() {
		return nil, fmt.Errorf("sample %d of %d: %w", i, set.Len(), ErrDimensionMismatch)
	}
	sample := make([]int, set.numVariables)
	for col := range sample {
		val, err := set.samples.At(i, col)
		if err != nil {
			return nil, err
		}
		sample[col] = int(val.(float64))
	}
	return sample, nil
}

//Samples returns all assignments in order.
func (set *SampleSet) Samples() ([][]int, error) {
	samples := make([][]int, set.Len())
	for ind := range samples {
		sample, err := set.Sample(ind)
		if err != nil {
			return nil, err
		}
		samples[ind] = sample
	}
	return samples, nil
}

//First is the best ranked assignment.
func (set *SampleSet) First() ([]int, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrEmptySampleSet
	}
	return set.Sample(0)
}

//aggregateSamples merges identical reads, counts them and orders the result by energy.
//Ties keep the order of first appearance.
func aggregateSamples(reads [][]int, energies []float64) (*SampleSet, error) {
	index := make(map[string]int, len(reads))
	var unique [][]int
	var uniqueEnergies []float64
	var occurrences []int
	for ind, read := range reads {
		key := fmt.Sprint(read)
		if pos, ok := index[key]; ok {
			occurrences[pos]++
			continue
		}
		index[key] = len(unique)
		unique = append(unique, read)
		uniqueEnergies = append(uniqueEnergies, energies[ind])
		occurrences = append(occurrences, 1)
	}

	order := makeRecordIds(len(unique))
	sort.SliceStable(order, func(a, b int) bool {
		return uniqueEnergies[order[a]] < uniqueEnergies[order[b]]
	})
	sortedSamples := make([][]int, len(order))
	sortedEnergies := make([]float64, len(order))
	sortedOccurrences := make([]int, len(order))
	for pos, ind := range order {
		sortedSamples[pos] = unique[ind]
		sortedEnergies[pos] = uniqueEnergies[ind]
		sortedOccurrences[pos] = occurrences[ind]
	}
	return NewSampleSet(sortedSamples, sortedEnergies, sortedOccurrences)
}
