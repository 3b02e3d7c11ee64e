package qbl

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

//DefaultLabel names the sampling problems of a fit that did not set one.
const DefaultLabel = "QBoost"

//QBoostClassifier owns a weak classifier ensemble and replaces its AdaBoost weights
//with the binary selection found by minimising a QUBO.
type QBoostClassifier struct {
	Ensemble *WeakEnsemble
	Weights  []float64
	Lambda   float64
	Qubo     QUBO `json:"-" msgpack:"-"`
	State    EstimatorState
}

//QBoostRegressor is QBoostClassifier over regression trees. It predicts the average of the selected estimators.
type QBoostRegressor struct {
	Ensemble *WeakEnsemble
	Weights  []float64
	Lambda   float64
	Qubo     QUBO `json:"-" msgpack:"-"`
	State    EstimatorState
}

//NewQBoostClassifier creates an unfitted model over nEstimators trees of depth maxDepth.
func NewQBoostClassifier(nEstimators, maxDepth int, opts ...EnsembleOption) *QBoostClassifier {
	return &QBoostClassifier{Ensemble: NewWeakClassifiers(nEstimators, maxDepth, opts...)}
}

//NewQBoostRegressor creates an unfitted model over nEstimators regression trees of depth maxDepth.
func NewQBoostRegressor(nEstimators, maxDepth int, opts ...EnsembleOption) *QBoostRegressor {
	return &QBoostRegressor{Ensemble: NewWeakRegressor(nEstimators, maxDepth, opts...)}
}

//selectEstimators fits the ensemble, builds the QUBO of its training predictions and
//turns the first sample of the sampler into 0/1 estimator weights.
func selectEstimators(ctx context.Context, ensemble *WeakEnsemble, features *mat.Dense, target []float64,
	sampler Sampler, lmd float64, opts SamplerOptions) ([]float64, QUBO, error) {
	if err := ensemble.Fit(features, target); err != nil {
		return nil, nil, fmt.Errorf("fit weak %s ensemble: %w", ensemble.Kind, err)
	}

	predictions, err := ensemble.EstimatorPredictions(features)
	if err != nil {
		return nil, nil, err
	}
	q, err := FormulateQUBO(predictions, target, lmd)
	if err != nil {
		return nil, nil, err
	}

	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	log.Info().Str("label", opts.Label).Int("variables", len(ensemble.Estimators)).Float64("lambda", lmd).Msg("sampling qubo")

	set, err := sampler.SampleQUBO(ctx, q, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("sample qubo: %w", err)
	}
	first, err := set.First()
	if err != nil {
		return nil, nil, fmt.Errorf("sample qubo: %w", err)
	}
	if len(first) != len(ensemble.Estimators) {
		return nil, nil, fmt.Errorf("solution of %d variables for %d estimators: %w", len(first), len(ensemble.Estimators), ErrDimensionMismatch)
	}

	weights := make([]float64, len(first))
	selected := 0
	for ind, val := range first {
		weights[ind] = float64(val)
		selected += val
	}
	log.Info().Int("selected", selected).Int("estimators", len(weights)).Msg("estimators selected")
	return weights, q, nil
}

//Fit trains the ensemble on features and ±1 labels and selects its estimators with sampler.
//On error the model stays unfitted.
func (model *QBoostClassifier) Fit(ctx context.Context, features *mat.Dense, target []float64,
	sampler Sampler, lmd float64, opts SamplerOptions) error {
	weights, q, err := selectEstimators(ctx, model.Ensemble, features, target, sampler, lmd, opts)
	if err != nil {
		return err
	}
	model.Weights, model.Qubo, model.Lambda = weights, q, lmd
	model.State = Fitted
	return nil
}

//IsFitted reports whether Fit has completed.
func (model *QBoostClassifier) IsFitted() bool {
	return model.State == Fitted
}

//DecisionFunction is the selected vote minus its mean over records and estimators.
func (model *QBoostClassifier) DecisionFunction(features *mat.Dense) ([]float64, error) {
	if !model.IsFitted() {
		return nil, ErrNotFitted
	}
	predictions, err := model.Ensemble.EstimatorPredictions(features)
	if err != nil {
		return nil, err
	}
	k, n := predictions.Dims()

	votes := weightedVote(model.Weights, predictions)
	threshold := 0.0
	for _, val := range votes {
		threshold += val
	}
	threshold /= float64(n * k)
	for ind := range votes {
		votes[ind] -= threshold
	}
	return votes, nil
}

//Predict returns ±1 labels, 0 where the vote equals the threshold.
func (model *QBoostClassifier) Predict(features *mat.Dense) ([]float64, error) {
	votes, err := model.DecisionFunction(features)
	if err != nil {
		return nil, err
	}
	for ind, val := range votes {
		votes[ind] = sign(val)
	}
	return votes, nil
}

//Fit trains the regression ensemble and selects its estimators with sampler.
func (model *QBoostRegressor) Fit(ctx context.Context, features *mat.Dense, target []float64,
	sampler Sampler, lmd float64, opts SamplerOptions) error {
	weights, q, err := selectEstimators(ctx, model.Ensemble, features, target, sampler, lmd, opts)
	if err != nil {
		return err
	}
	model.Weights, model.Qubo, model.Lambda = weights, q, lmd
	model.State = Fitted
	return nil
}

//IsFitted reports whether Fit has completed.
func (model *QBoostRegressor) IsFitted() bool {
	return model.State == Fitted
}

//Predict averages the selected estimators. With nothing selected the raw sum, all zeros, is returned.
func (model *QBoostRegressor) Predict(features *mat.Dense) ([]float64, error) {
	if !model.IsFitted() {
		return nil, ErrNotFitted
	}
	predictions, err := model.Ensemble.EstimatorPredictions(features)
	if err != nil {
		return nil, err
	}

	votes := weightedVote(model.Weights, predictions)
	norm := 0.0
	for _, w := range model.Weights {
		norm += w
	}
	if norm > 0 {
		for ind := range votes {
			votes[ind] /= norm
		}
	}
	return votes, nil
}
