package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tarstars/quantum_boosting/golang/qboost/config"
	"github.com/tarstars/quantum_boosting/golang/qboost/logger"
	"github.com/tarstars/quantum_boosting/golang/qboost/qbl"
)

func handleError(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("qboost failed")
	}
}

func decodeConfig(srcConfig string, out interface{}) error {
	file, err := os.Open(srcConfig)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode config %s: %w", srcConfig, err)
	}
	return nil
}

//DatasetConfig points to the data of a run: two npy files, a csv file or a synthetic set.
type DatasetConfig struct {
	FileNameFeatures string  `json:"filename_features"`
	FileNameLabels   string  `json:"filename_labels"`
	FileNameCSV      string  `json:"filename_csv"`
	LabelColumn      string  `json:"label_column"`
	PositiveLabel    string  `json:"positive_label"`
	SyntheticSize    int     `json:"synthetic_size"`
	TestRatio        float64 `json:"test_ratio"`
	SplitSeed        int64   `json:"split_seed"`
}

func (cfg DatasetConfig) load() (qbl.Dataset, error) {
	switch {
	case cfg.FileNameCSV != "":
		return qbl.ReadCSV(cfg.FileNameCSV, cfg.LabelColumn, cfg.PositiveLabel)
	case cfg.FileNameFeatures != "":
		return qbl.ReadDataset(cfg.FileNameFeatures, cfg.FileNameLabels)
	case cfg.SyntheticSize > 0:
		return qbl.SyntheticDataset(cfg.SyntheticSize, cfg.SplitSeed), nil
	}
	return qbl.Dataset{}, fmt.Errorf("dataset config names neither npy, csv nor synthetic data")
}

//SamplerConfig selects the QUBO sampler and its options.
type SamplerConfig struct {
	Kind                      string  `json:"kind"` // exact, anneal or remote
	NumReads                  int     `json:"num_reads"`
	AutoScale                 bool    `json:"auto_scale"`
	NumSpinReversalTransforms int     `json:"num_spin_reversal_transforms"`
	AnnealingTime             float64 `json:"annealing_time"`
	Seed                      int64   `json:"seed"`
	Sweeps                    int     `json:"sweeps"`
}

func (cfg SamplerConfig) options() qbl.SamplerOptions {
	return qbl.SamplerOptions{
		NumReads:                  cfg.NumReads,
		AutoScale:                 cfg.AutoScale,
		NumSpinReversalTransforms: cfg.NumSpinReversalTransforms,
		AnnealingTime:             cfg.AnnealingTime,
	}
}

func newSampler(cfg SamplerConfig, env *config.Config) (qbl.Sampler, error) {
	switch cfg.Kind {
	case "exact":
		return qbl.ExactSolver{}, nil
	case "", "anneal":
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return qbl.SimulatedAnnealingSampler{Seed: seed, NumSweeps: cfg.Sweeps}, nil
	case "remote":
		if err := env.RequireSampler(); err != nil {
			return nil, err
		}
		return qbl.NewHTTPSampler(env.SamplerURL, env.SamplerToken, env.SamplerSolver, env.SamplerTimeout, log.Logger), nil
	}
	return nil, fmt.Errorf("unknown sampler %q", cfg.Kind)
}

func ensembleOptions(seed int64, threadsNum int) []qbl.EnsembleOption {
	opts := []qbl.EnsembleOption{qbl.WithThreads(threadsNum)}
	if seed != 0 {
		opts = append(opts, qbl.WithSeed(seed))
	}
	return opts
}

func maybePreprocess(ds *qbl.Dataset, enabled bool) error {
	if !enabled {
		return nil
	}
	features, err := qbl.Preprocess(ds.Features)
	if err != nil {
		return err
	}
	ds.Features = features
	return nil
}

const (
	taskClassifier = "classifier"
	taskRegressor  = "regressor"
	taskAdaBoost   = "adaboost"
)

//TrainConfig describes the fit of a QBoost model on a whole data set.
type TrainConfig struct {
	Dataset           DatasetConfig `json:"dataset"`
	Sampler           SamplerConfig `json:"sampler"`
	Task              string        `json:"task"`
	NumWeakEstimators int           `json:"num_weak_estimators"`
	TreeDepth         int           `json:"tree_depth"`
	Lambda            float64       `json:"lambda"`
	Seed              int64         `json:"seed"`
	ThreadsNum        int           `json:"threads_num"`
	Preprocess        bool          `json:"preprocess"`
	FileNameModel     string        `json:"filename_model"`
}

func train(srcConfig string, env *config.Config) error {
	trainConfig := TrainConfig{
		Sampler:           SamplerConfig{Kind: "anneal", NumReads: 3000, AutoScale: true, NumSpinReversalTransforms: 10},
		Task:              taskClassifier,
		NumWeakEstimators: 35,
		TreeDepth:         3,
		Lambda:            1.0,
		ThreadsNum:        1,
	}
	if err := decodeConfig(srcConfig, &trainConfig); err != nil {
		return err
	}

	ds, err := trainConfig.Dataset.load()
	if err != nil {
		return err
	}
	if err := maybePreprocess(&ds, trainConfig.Preprocess); err != nil {
		return err
	}
	sampler, err := newSampler(trainConfig.Sampler, env)
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := ensembleOptions(trainConfig.Seed, trainConfig.ThreadsNum)
	var model any
	var prediction []float64
	switch trainConfig.Task {
	case taskClassifier:
		clf := qbl.NewQBoostClassifier(trainConfig.NumWeakEstimators, trainConfig.TreeDepth, opts...)
		if err := clf.Fit(ctx, ds.Features, ds.Labels, sampler, trainConfig.Lambda, trainConfig.Sampler.options()); err != nil {
			return err
		}
		if prediction, err = clf.Predict(ds.Features); err != nil {
			return err
		}
		log.Info().Float64("accuracy", qbl.Accuracy(ds.Labels, prediction)).Msg("training set")
		model = clf
	case taskRegressor:
		reg := qbl.NewQBoostRegressor(trainConfig.NumWeakEstimators, trainConfig.TreeDepth, opts...)
		if err := reg.Fit(ctx, ds.Features, ds.Labels, sampler, trainConfig.Lambda, trainConfig.Sampler.options()); err != nil {
			return err
		}
		if prediction, err = reg.Predict(ds.Features); err != nil {
			return err
		}
		log.Info().Float64("rmse", qbl.Rmse(ds.Labels, prediction)).Msg("training set")
		model = reg
	case taskAdaBoost:
		ensemble := qbl.NewWeakClassifiers(trainConfig.NumWeakEstimators, trainConfig.TreeDepth, opts...)
		if err := ensemble.Fit(ds.Features, ds.Labels); err != nil {
			return err
		}
		if prediction, err = ensemble.Predict(ds.Features); err != nil {
			return err
		}
		log.Info().Float64("accuracy", qbl.Accuracy(ds.Labels, prediction)).Msg("training set")
		model = ensemble
	default:
		return fmt.Errorf("unknown task %q", trainConfig.Task)
	}

	return qbl.SaveModel(trainConfig.FileNameModel, model)
}

//PredictConfig describes the inference of a saved model on npy features.
type PredictConfig struct {
	FileNameFeatures   string `json:"filename_features"`
	FileNameModel      string `json:"filename_model"`
	FileNamePrediction string `json:"filename_prediction"`
	Task               string `json:"task"`
	Preprocess         bool   `json:"preprocess"`
}

func predict(srcConfig string, _ *config.Config) error {
	predictConfig := PredictConfig{Task: taskClassifier}
	if err := decodeConfig(srcConfig, &predictConfig); err != nil {
		return err
	}

	features, err := qbl.ReadNpy(predictConfig.FileNameFeatures)
	if err != nil {
		return err
	}
	if predictConfig.Preprocess {
		if features, err = qbl.Preprocess(features); err != nil {
			return err
		}
	}

	var prediction []float64
	switch predictConfig.Task {
	case taskClassifier:
		clf, err := qbl.LoadQBoostClassifier(predictConfig.FileNameModel)
		if err != nil {
			return err
		}
		prediction, err = clf.Predict(features)
		if err != nil {
			return err
		}
	case taskRegressor:
		reg, err := qbl.LoadQBoostRegressor(predictConfig.FileNameModel)
		if err != nil {
			return err
		}
		prediction, err = reg.Predict(features)
		if err != nil {
			return err
		}
	case taskAdaBoost:
		ensemble, err := qbl.LoadWeakEnsemble(predictConfig.FileNameModel)
		if err != nil {
			return err
		}
		prediction, err = ensemble.Predict(features)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown task %q", predictConfig.Task)
	}

	return qbl.WriteNpy(predictConfig.FileNamePrediction, prediction)
}

//GraphConfig describes the rendering of the trees of a saved model.
type GraphConfig struct {
	ModelFileName     string `json:"filename_model"`
	Task              string `json:"task"`
	FigureType        string `json:"figure_type"`
	PicturesDirectory string `json:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix"`
}

func graph(srcConfig string, _ *config.Config) error {
	graphConfig := GraphConfig{Task: taskClassifier, FigureType: "svg", PicturesDirectory: ".", DumpPrefix: "tree"}
	if err := decodeConfig(srcConfig, &graphConfig); err != nil {
		return err
	}

	var ensemble *qbl.WeakEnsemble
	switch graphConfig.Task {
	case taskClassifier:
		clf, err := qbl.LoadQBoostClassifier(graphConfig.ModelFileName)
		if err != nil {
			return err
		}
		ensemble = clf.Ensemble
	case taskRegressor:
		reg, err := qbl.LoadQBoostRegressor(graphConfig.ModelFileName)
		if err != nil {
			return err
		}
		ensemble = reg.Ensemble
	case taskAdaBoost:
		var err error
		if ensemble, err = qbl.LoadWeakEnsemble(graphConfig.ModelFileName); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown task %q", graphConfig.Task)
	}
	return ensemble.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory)
}

func main() {
	runMode := flag.String("mode", "demo", "you can select either 'demo', 'train', 'predict' or 'graph' modes")
	srcConfig := flag.String("config", "qboost_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	env, err := config.Load()
	handleError(err)
	logger.SetGlobalLogger(logger.New(logger.Config{Level: env.LogLevel, Pretty: env.LogPretty}))

	mode, ok := map[string]func(string, *config.Config) error{
		"demo":    demo,
		"train":   train,
		"predict": predict,
		"graph":   graph,
	}[*runMode]
	if !ok {
		handleError(fmt.Errorf("unknown mode %q", *runMode))
	}
	handleError(mode(*srcConfig, env))

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		handleError(err)
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not write memory profile")
		}
	}
}
