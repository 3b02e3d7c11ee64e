package qbl

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//Pair indexes a QUBO coefficient. I <= J always holds.
type Pair struct {
	I, J int
}

//QUBO maps index pairs to the coefficients of the objective x^T Q x over binary x.
//Diagonal entries hold the linear terms, off-diagonal entries exist only for I < J.
type QUBO map[Pair]float64

//Term is one coefficient of a QUBO in a flat form.
type Term struct {
	I, J  int
	Value float64
}

//NumVariables is one more than the largest index mentioned by any coefficient.
func (q QUBO) NumVariables() int {
	n := 0
	for pair := range q {
		if pair.J+1 > n {
			n = pair.J + 1
		}
		if pair.I+1 > n {
			n = pair.I + 1
		}
	}
	return n
}

//Energy evaluates x^T Q x for a 0/1 assignment x.
func (q QUBO) Energy(x []int) float64 {
	return termsEnergy(q.Terms(), x)
}

func termsEnergy(terms []Term, x []int) float64 {
	energy := 0.0
	for _, term := range terms {
		if x[term.I] != 0 && x[term.J] != 0 {
			energy += term.Value
		}
	}
	return energy
}

//Terms lists the coefficients ordered by (I, J).
func (q QUBO) Terms() []Term {
	terms := make([]Term, 0, len(q))
	for pair, val := range q {
		terms = append(terms, Term{I: pair.I, J: pair.J, Value: val})
	}
	sort.Slice(terms, func(a, b int) bool {
		if terms[a].I != terms[b].I {
			return terms[a].I < terms[b].I
		}
		return terms[a].J < terms[b].J
	})
	return terms
}

//MaxAbsCoefficient returns the largest absolute coefficient, 0 for an empty QUBO.
func (q QUBO) MaxAbsCoefficient() float64 {
	m := 0.0
	for _, val := range q {
		if val < 0 {
			val = -val
		}
		if val > m {
			m = val
		}
	}
	return m
}

//QUBOFromTerms builds a QUBO from flat terms. Pairs given as (J, I) are folded onto (I, J)
//and repeated pairs are summed.
func QUBOFromTerms(terms []Term) QUBO {
	q := make(QUBO, len(terms))
	for _, term := range terms {
		i, j := term.I, term.J
		if i > j {
			i, j = j, i
		}
		q[Pair{i, j}] += term.Value
	}
	return q
}

//FormulateQUBO builds the QBoost objective from the k x N matrix of estimator predictions
//and the N labels. Every row is scaled by 1/k into H, then
//	Q[k,k] = N/k^2 + lmd - 2 H[k].y
//	Q[i,j] = H[i].H[j]  for i < j
func FormulateQUBO(predictions *mat.Dense, labels []float64, lmd float64) (QUBO, error) {
	k, n := predictions.Dims()
	if k == 0 || n == 0 {
		return nil, fmt.Errorf("empty %dx%d prediction matrix: %w", k, n, ErrDimensionMismatch)
	}
	if len(labels) != n {
		return nil, fmt.Errorf("predictions of %d records, %d labels: %w", n, len(labels), ErrDimensionMismatch)
	}

	var h mat.Dense
	h.Scale(1/float64(k), predictions)

	var hy mat.VecDense
	hy.MulVec(&h, mat.NewVecDense(n, append([]float64(nil), labels...)))

	var hh mat.Dense
	hh.Mul(&h, h.T())

	q := make(QUBO, k*(k+1)/2)
	diagonalBase := float64(n)/float64(k*k) + lmd
	for i := 0; i < k; i++ {
		q[Pair{i, i}] = diagonalBase - 2*hy.AtVec(i)
		for j := i + 1; j < k; j++ {
			q[Pair{i, j}] = hh.At(i, j)
		}
	}
	return q, nil
}
