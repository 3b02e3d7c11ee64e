package qbl

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//EstimatorState is the explicit fitted flag of a model.
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

//EnsembleKind selects classification or regression weak estimators.
type EnsembleKind int

const (
	KindClassifier EnsembleKind = iota
	KindRegressor
)

func (kind EnsembleKind) String() string {
	if kind == KindRegressor {
		return "regressor"
	}
	return "classifier"
}

const (
	//epsFloor replaces a zero weighted error so that the confidence weight stays finite.
	epsFloor = 1e-20
	//penaltyPercent is the share of the normalised residual range counted as a hit in regression.
	penaltyPercent = 0.1
)

//WeakEnsemble is a fixed size collection of bounded-depth trees boosted with discrete AdaBoost.
type WeakEnsemble struct {
	Kind             EnsembleKind
	NEstimators      int
	MaxDepth         int
	Estimators       []*DecisionTree
	EstimatorWeights []float64
	State            EstimatorState
}

type ensembleOptions struct {
	rnd        *rand.Rand
	threadsNum int
}

//EnsembleOption configures a new ensemble.
type EnsembleOption func(*ensembleOptions)

//WithSeed makes the tie-break seeds of the estimators reproducible.
func WithSeed(seed int64) EnsembleOption {
	return func(o *ensembleOptions) { o.rnd = rand.New(rand.NewSource(seed)) }
}

//WithThreads sets the number of goroutines every tree uses to scan features.
func WithThreads(threadsNum int) EnsembleOption {
	return func(o *ensembleOptions) { o.threadsNum = threadsNum }
}

//NewWeakClassifiers allocates nEstimators classification trees of depth maxDepth,
//each with its own random tie-break seed.
func NewWeakClassifiers(nEstimators, maxDepth int, opts ...EnsembleOption) *WeakEnsemble {
	return newWeakEnsemble(KindClassifier, nEstimators, maxDepth, opts)
}

//NewWeakRegressor allocates nEstimators regression trees of depth maxDepth.
func NewWeakRegressor(nEstimators, maxDepth int, opts ...EnsembleOption) *WeakEnsemble {
	return newWeakEnsemble(KindRegressor, nEstimators, maxDepth, opts)
}

func newWeakEnsemble(kind EnsembleKind, nEstimators, maxDepth int, opts []EnsembleOption) *WeakEnsemble {
	o := ensembleOptions{threadsNum: 1}
	for _, opt := range opts {
		opt(&o)
	}
	seed := rand.Int63n
	if o.rnd != nil {
		seed = o.rnd.Int63n
	}

	ensemble := &WeakEnsemble{
		Kind:        kind,
		NEstimators: nEstimators,
		MaxDepth:    maxDepth,
		Estimators:  make([]*DecisionTree, nEstimators),
	}
	for ind := range ensemble.Estimators {
		estimatorSeed := 1000000 + seed(9000000)
		if kind == KindRegressor {
			ensemble.Estimators[ind] = NewDecisionTreeRegressor(maxDepth, estimatorSeed)
		} else {
			ensemble.Estimators[ind] = NewDecisionTreeClassifier(maxDepth, estimatorSeed)
		}
		ensemble.Estimators[ind].ThreadsNum = o.threadsNum
	}
	return ensemble
}

//IsFitted reports whether Fit has completed.
func (ensemble *WeakEnsemble) IsFitted() bool {
	return ensemble.State == Fitted
}

//AdaBoostWeight is the confidence of an estimator with weighted error eps.
func AdaBoostWeight(eps float64) float64 {
	return (math.Log(1-eps) - math.Log(eps)) / 2
}

//WeightPenalty marks the records whose absolute residual is outside the best tenth
//of the min-max normalised residual range. Identical residuals cannot be normalised.
func WeightPenalty(prediction, target []float64) ([]float64, error) {
	if len(prediction) != len(target) || len(target) == 0 {
		return nil, fmt.Errorf("prediction length %d, target length %d: %w", len(prediction), len(target), ErrDimensionMismatch)
	}
	diff := make([]float64, len(target))
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for ind := range target {
		diff[ind] = math.Abs(prediction[ind] - target[ind])
		minDiff = math.Min(minDiff, diff[ind])
		maxDiff = math.Max(maxDiff, diff[ind])
	}
	if maxDiff == minDiff {
		return nil, fmt.Errorf("all %d residuals equal %g: %w", len(diff), maxDiff, ErrDegenerateInput)
	}

	penalty := make([]float64, len(diff))
	for ind, val := range diff {
		if (val-minDiff)/(maxDiff-minDiff) >= penaltyPercent {
			penalty[ind] = 1
		}
	}
	return penalty, nil
}

//reweight multiplies the sample distribution by exp(-w*y*pred) and renormalises it to sum to one.
//The product is taken in log space, large |w*y*pred| only drives records to zero weight.
func reweight(distribution []float64, w float64, target, prediction []float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("estimator weight %g: %w", w, ErrDegenerateInput)
	}
	logWeights := make([]float64, len(distribution))
	maxLog := math.Inf(-1)
	for ind, d := range distribution {
		logWeights[ind] = math.Log(d) - w*target[ind]*prediction[ind]
		if math.IsNaN(logWeights[ind]) {
			return fmt.Errorf("record %d gets weight NaN: %w", ind, ErrDegenerateInput)
		}
		maxLog = math.Max(maxLog, logWeights[ind])
	}
	if math.IsInf(maxLog, 0) {
		return fmt.Errorf("sample distribution vanished: %w", ErrDegenerateInput)
	}

	sum := 0.0
	for ind, val := range logWeights {
		distribution[ind] = math.Exp(val - maxLog)
		sum += distribution[ind]
	}
	if sum <= 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return fmt.Errorf("sample distribution sums to %g: %w", sum, ErrDegenerateInput)
	}
	for ind := range distribution {
		distribution[ind] /= sum
	}
	return nil
}

//weightedError is the weighted share of records the estimator got wrong.
func (ensemble *WeakEnsemble) weightedError(distribution, target, prediction []float64) (float64, error) {
	eps := 0.0
	if ensemble.Kind == KindRegressor {
		penalty, err := WeightPenalty(prediction, target)
		if err != nil {
			return 0, err
		}
		for ind, val := range penalty {
			eps += distribution[ind] * val
		}
		return eps, nil
	}
	for ind := range target {
		if prediction[ind] != target[ind] {
			eps += distribution[ind]
		}
	}
	return eps, nil
}

//Fit runs exactly NEstimators rounds of discrete AdaBoost over features and target.
func (ensemble *WeakEnsemble) Fit(features *mat.Dense, target []float64) error {
	h, _ := features.Dims()
	if h == 0 || len(target) != h {
		return fmt.Errorf("features height %d, target length %d: %w", h, len(target), ErrDimensionMismatch)
	}
	if len(ensemble.Estimators) == 0 {
		return fmt.Errorf("ensemble without estimators: %w", ErrDimensionMismatch)
	}

	weights := make([]float64, ensemble.NEstimators)
	distribution := make([]float64, h)
	for ind := range distribution {
		distribution[ind] = 1 / float64(h)
	}

	for stage, estimator := range ensemble.Estimators {
		if err := estimator.Fit(features, target, distribution); err != nil {
			return fmt.Errorf("fit estimator %d: %w", stage, err)
		}
		prediction, err := estimator.Predict(features)
		if err != nil {
			return fmt.Errorf("predict estimator %d: %w", stage, err)
		}

		eps, err := ensemble.weightedError(distribution, target, prediction)
		if err != nil {
			return fmt.Errorf("weighted error of estimator %d: %w", stage, err)
		}
		if eps == 0 {
			eps = epsFloor
		}
		w := AdaBoostWeight(eps)
		if err := reweight(distribution, w, target, prediction); err != nil {
			return fmt.Errorf("reweight after estimator %d: %w", stage, err)
		}
		weights[stage] = w

		log.Debug().Int("tree", stage+1).Float64("eps", eps).Float64("weight", w).Msg("weak estimator fitted")
	}

	ensemble.EstimatorWeights = weights
	ensemble.State = Fitted
	return nil
}

//EstimatorPredictions returns the NEstimators x rows matrix of per-estimator predictions.
func (ensemble *WeakEnsemble) EstimatorPredictions(features *mat.Dense) (*mat.Dense, error) {
	h, _ := features.Dims()
	if h == 0 || len(ensemble.Estimators) == 0 {
		return nil, fmt.Errorf("%d estimators over %d records: %w", len(ensemble.Estimators), h, ErrDimensionMismatch)
	}
	predictions := mat.NewDense(len(ensemble.Estimators), h, nil)
	for ind, estimator := range ensemble.Estimators {
		prediction, err := estimator.Predict(features)
		if err != nil {
			return nil, fmt.Errorf("estimator %d: %w", ind, err)
		}
		predictions.SetRow(ind, prediction)
	}
	return predictions, nil
}

//DecisionFunction returns the weighted vote sum_i w_i * pred_i without taking its sign.
func (ensemble *WeakEnsemble) DecisionFunction(features *mat.Dense) ([]float64, error) {
	if !ensemble.IsFitted() {
		return nil, ErrNotFitted
	}
	predictions, err := ensemble.EstimatorPredictions(features)
	if err != nil {
		return nil, err
	}
	return weightedVote(ensemble.EstimatorWeights, predictions), nil
}

//Predict returns sign(sum_i w_i * pred_i). The regressor signs its output as well.
func (ensemble *WeakEnsemble) Predict(features *mat.Dense) ([]float64, error) {
	votes, err := ensemble.DecisionFunction(features)
	if err != nil {
		return nil, err
	}
	for ind, val := range votes {
		votes[ind] = sign(val)
	}
	return votes, nil
}

//Copy returns an independent deep copy of the ensemble including the fitted state.
func (ensemble *WeakEnsemble) Copy() *WeakEnsemble {
	clone := &WeakEnsemble{
		Kind:        ensemble.Kind,
		NEstimators: ensemble.NEstimators,
		MaxDepth:    ensemble.MaxDepth,
		Estimators:  make([]*DecisionTree, len(ensemble.Estimators)),
		State:       ensemble.State,
	}
	for ind, estimator := range ensemble.Estimators {
		clone.Estimators[ind] = estimator.Clone()
	}
	if ensemble.EstimatorWeights != nil {
		clone.EstimatorWeights = append([]float64(nil), ensemble.EstimatorWeights...)
	}
	return clone
}

//weightedVote sums the rows of predictions scaled by weights. Rows with zero weight are skipped.
func weightedVote(weights []float64, predictions *mat.Dense) []float64 {
	_, n := predictions.Dims()
	votes := make([]float64, n)
	for ind, w := range weights {
		if w == 0 {
			continue
		}
		floats.AddScaled(votes, w, predictions.RawRowView(ind))
	}
	return votes
}
