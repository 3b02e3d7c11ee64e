package qbl

import (
	"context"
	"fmt"
	"sort"
)

//MaxExactVariables bounds the problems ExactSolver agrees to enumerate.
const MaxExactVariables = 16

//ExactSolver enumerates every assignment of a small QUBO and returns all of them
//ordered by energy. Options are ignored.
type ExactSolver struct{}

//SampleQUBO implements Sampler.
func (ExactSolver) SampleQUBO(ctx context.Context, q QUBO, _ SamplerOptions) (*SampleSet, error) {
	n := q.NumVariables()
	if n == 0 {
		return nil, fmt.Errorf("qubo without variables: %w", ErrDimensionMismatch)
	}
	if n > MaxExactVariables {
		return nil, fmt.Errorf("%d variables, at most %d are enumerated: %w", n, MaxExactVariables, ErrTooManyVariables)
	}

	terms := q.Terms()
	states := 1 << n
	samples := make([][]int, states)
	energies := make([]float64, states)
	for state := 0; state < states; state++ {
		if state&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		x := make([]int, n)
		for bit := range x {
			x[bit] = (state >> bit) & 1
		}
		samples[state] = x
		energies[state] = termsEnergy(terms, x)
	}

	order := makeRecordIds(states)
	sort.SliceStable(order, func(a, b int) bool {
		return energies[order[a]] < energies[order[b]]
	})
	sortedSamples := make([][]int, states)
	sortedEnergies := make([]float64, states)
	for pos, state := range order {
		sortedSamples[pos] = samples[state]
		sortedEnergies[pos] = energies[state]
	}
	return NewSampleSet(sortedSamples, sortedEnergies, nil)
}
