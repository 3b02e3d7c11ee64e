package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tarstars/quantum_boosting/golang/qboost/config"
	"github.com/tarstars/quantum_boosting/golang/qboost/qbl"
)

//DemoConfig drives the comparison of AdaBoost stumps, the boosted weak ensemble and QBoost.
type DemoConfig struct {
	Dataset            DatasetConfig `json:"dataset"`
	Sampler            SamplerConfig `json:"sampler"`
	NumWeakClassifiers int           `json:"num_weak_classifiers"`
	TreeDepth          int           `json:"tree_depth"`
	Lambda             float64       `json:"lambda"`
	Seed               int64         `json:"seed"`
	ThreadsNum         int           `json:"threads_num"`
	Verbose            bool          `json:"verbose"`
}

func defaultDemoConfig() DemoConfig {
	return DemoConfig{
		Dataset:            DatasetConfig{SyntheticSize: 200, TestRatio: 0.3},
		Sampler:            SamplerConfig{Kind: "anneal", NumReads: 3000, AutoScale: true, NumSpinReversalTransforms: 10},
		NumWeakClassifiers: 35,
		TreeDepth:          3,
		Lambda:             1.0,
		ThreadsNum:         1,
	}
}

func demo(srcConfig string, env *config.Config) error {
	demoConfig := defaultDemoConfig()
	if err := decodeConfig(srcConfig, &demoConfig); err != nil {
		return err
	}
	sampler, err := newSampler(demoConfig.Sampler, env)
	if err != nil {
		return err
	}
	return runDemo(context.Background(), demoConfig, sampler, os.Stdout)
}

func printAccuracy(out io.Writer, yTrain, yTrainPred, yTest, yTestPred []float64) {
	fmt.Fprintf(out, "    Accuracy on training set: %5.2f\n", qbl.Accuracy(yTrain, yTrainPred))
	fmt.Fprintf(out, "    Accuracy on test set:     %5.2f\n", qbl.Accuracy(yTest, yTestPred))
}

func evaluate(out io.Writer, predict func(ds qbl.Dataset) ([]float64, error), train, test qbl.Dataset) error {
	yTrainPred, err := predict(train)
	if err != nil {
		return err
	}
	yTestPred, err := predict(test)
	if err != nil {
		return err
	}
	printAccuracy(out, train.Labels, yTrainPred, test.Labels, yTestPred)
	return nil
}

func runDemo(ctx context.Context, demoConfig DemoConfig, sampler qbl.Sampler, out io.Writer) error {
	ds, err := demoConfig.Dataset.load()
	if err != nil {
		return err
	}
	if demoConfig.Dataset.TestRatio <= 0 {
		return fmt.Errorf("demo needs a positive test ratio, got %v", demoConfig.Dataset.TestRatio)
	}
	train, test, err := ds.TrainTestSplit(demoConfig.Dataset.TestRatio, demoConfig.Dataset.SplitSeed)
	if err != nil {
		return err
	}

	if ds.Description != nil {
		fmt.Fprintf(out, "Data set: %s\n", *ds.Description)
	}
	fmt.Fprintln(out, "Size of training set:", train.Len())
	fmt.Fprintln(out, "Size of test set:    ", test.Len())
	fmt.Fprintln(out, "Number of weak classifiers:", demoConfig.NumWeakClassifiers)
	fmt.Fprintln(out, "Tree depth:", demoConfig.TreeDepth)

	// every part is scaled on its own statistics
	if err := maybePreprocess(&train, true); err != nil {
		return err
	}
	if err := maybePreprocess(&test, true); err != nil {
		return err
	}

	opts := ensembleOptions(demoConfig.Seed, demoConfig.ThreadsNum)

	fmt.Fprintln(out, "\nAdaboost:")
	stumps := qbl.NewWeakClassifiers(demoConfig.NumWeakClassifiers, 1, opts...)
	if err := stumps.Fit(train.Features, train.Labels); err != nil {
		return err
	}
	if err := evaluate(out, func(ds qbl.Dataset) ([]float64, error) { return stumps.Predict(ds.Features) }, train, test); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nDecision tree:")
	weak := qbl.NewWeakClassifiers(demoConfig.NumWeakClassifiers, demoConfig.TreeDepth, opts...)
	if err := weak.Fit(train.Features, train.Labels); err != nil {
		return err
	}
	if demoConfig.Verbose {
		fmt.Fprintln(out, "weights:\n", weak.EstimatorWeights)
	}
	if err := evaluate(out, func(ds qbl.Dataset) ([]float64, error) { return weak.Predict(ds.Features) }, train, test); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nQBoost:")
	clf := qbl.NewQBoostClassifier(demoConfig.NumWeakClassifiers, demoConfig.TreeDepth, opts...)
	if err := clf.Fit(ctx, train.Features, train.Labels, sampler, demoConfig.Lambda, demoConfig.Sampler.options()); err != nil {
		return err
	}
	if demoConfig.Verbose {
		fmt.Fprintln(out, "weights\n", clf.Weights)
	}
	return evaluate(out, func(ds qbl.Dataset) ([]float64, error) { return clf.Predict(ds.Features) }, train, test)
}
