package qbl

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultNumReads  = 10
	defaultNumSweeps = 1000
)

//SimulatedAnnealingSampler is a classical single-flip Metropolis sampler for offline runs.
//Zero BetaMin or BetaMax are derived from the coefficients of the problem.
type SimulatedAnnealingSampler struct {
	Seed      int64
	NumSweeps int
	BetaMin   float64
	BetaMax   float64
}

//annealingProblem is a QUBO split into linear terms and a symmetric coupling matrix with a zero diagonal.
type annealingProblem struct {
	n         int
	linear    []float64
	couplings *mat.SymDense
}

func newAnnealingProblem(q QUBO, scale float64) *annealingProblem {
	n := q.NumVariables()
	problem := &annealingProblem{
		n:         n,
		linear:    make([]float64, n),
		couplings: mat.NewSymDense(n, nil),
	}
	for pair, val := range q {
		if pair.I == pair.J {
			problem.linear[pair.I] += val * scale
		} else {
			problem.couplings.SetSym(pair.I, pair.J, problem.couplings.At(pair.I, pair.J)+val*scale)
		}
	}
	return problem
}

//betaRange chooses the inverse temperatures so that the hottest sweep flips the most constrained
//variable with probability one half and the coldest one keeps the weakest term with probability 0.99.
func (problem *annealingProblem) betaRange() (betaMin, betaMax float64) {
	maxField := 0.0
	minNonzero := math.Inf(1)
	for i := 0; i < problem.n; i++ {
		field := math.Abs(problem.linear[i])
		if field > 0 {
			minNonzero = math.Min(minNonzero, field)
		}
		for j := 0; j < problem.n; j++ {
			c := math.Abs(problem.couplings.At(i, j))
			field += c
			if c > 0 {
				minNonzero = math.Min(minNonzero, c)
			}
		}
		maxField = math.Max(maxField, field)
	}
	if maxField == 0 {
		return 1, 1
	}
	return math.Log(2) / maxField, math.Log(100) / minNonzero
}

//localFields returns linear[i] + sum_j c_ij x_j for every variable.
func (problem *annealingProblem) localFields(x []int) []float64 {
	fields := append([]float64(nil), problem.linear...)
	for i := 0; i < problem.n; i++ {
		for j := 0; j < problem.n; j++ {
			if x[j] != 0 {
				fields[i] += problem.couplings.At(i, j)
			}
		}
	}
	return fields
}

func (problem *annealingProblem) anneal(rnd *rand.Rand, schedule []float64) []int {
	x := make([]int, problem.n)
	for i := range x {
		x[i] = rnd.Intn(2)
	}
	fields := problem.localFields(x)

	for _, beta := range schedule {
		for i := 0; i < problem.n; i++ {
			delta := float64(1-2*x[i]) * fields[i]
			if delta > 0 && rnd.Float64() >= math.Exp(-beta*delta) {
				continue
			}
			change := float64(1 - 2*x[i])
			x[i] = 1 - x[i]
			for j := 0; j < problem.n; j++ {
				if j != i {
					fields[j] += change * problem.couplings.At(i, j)
				}
			}
		}
	}
	return x
}

func geometricSchedule(betaMin, betaMax float64, sweeps int) []float64 {
	schedule := make([]float64, sweeps)
	if sweeps == 1 {
		schedule[0] = betaMax
		return schedule
	}
	ratio := betaMax / betaMin
	for s := range schedule {
		schedule[s] = betaMin * math.Pow(ratio, float64(s)/float64(sweeps-1))
	}
	return schedule
}

//SampleQUBO implements Sampler. Every read starts from a random state and follows the same schedule.
//NumSpinReversalTransforms and AnnealingTime have no meaning for this sampler and are ignored.
func (sampler SimulatedAnnealingSampler) SampleQUBO(ctx context.Context, q QUBO, opts SamplerOptions) (*SampleSet, error) {
	if q.NumVariables() == 0 {
		return nil, fmt.Errorf("qubo without variables: %w", ErrDimensionMismatch)
	}
	numReads := opts.NumReads
	if numReads <= 0 {
		numReads = defaultNumReads
	}
	numSweeps := sampler.NumSweeps
	if numSweeps <= 0 {
		numSweeps = defaultNumSweeps
	}

	scale := 1.0
	if opts.AutoScale {
		if m := q.MaxAbsCoefficient(); m > 0 {
			scale = 1 / m
		}
	}
	problem := newAnnealingProblem(q, scale)

	betaMin, betaMax := sampler.BetaMin, sampler.BetaMax
	if betaMin <= 0 || betaMax <= 0 {
		betaMin, betaMax = problem.betaRange()
	}
	schedule := geometricSchedule(betaMin, betaMax, numSweeps)

	log.Debug().Str("label", opts.Label).Int("variables", problem.n).Int("reads", numReads).
		Float64("beta_min", betaMin).Float64("beta_max", betaMax).Msg("simulated annealing")

	rnd := rand.New(rand.NewSource(sampler.Seed))
	terms := q.Terms()
	reads := make([][]int, numReads)
	energies := make([]float64, numReads)
	for r := range reads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reads[r] = problem.anneal(rnd, schedule)
		energies[r] = termsEnergy(terms, reads[r])
	}
	return aggregateSamples(reads, energies)
}
