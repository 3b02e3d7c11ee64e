// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tarstars/quantum_boosting/golang/qboost/config"
	"github.com/tarstars/quantum_boosting/golang/qboost/logger"
	"github.com/tarstars/quantum_boosting/golang/qboost/qbl"
)

const (
	taskClassifier = 0
	taskRegressor  = 1

	samplerExact  = 0
	samplerAnneal = 1
	samplerRemote = 2
)

// bridgeModel is a fitted QBoost classifier or regressor.
type bridgeModel interface {
	Predict(features *mat.Dense) ([]float64, error)
}

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	models            = make(map[uint64]bridgeModel)

	lastErrorMu sync.Mutex
	lastError   string

	logSilenceOnce sync.Once
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

func storeModel(m bridgeModel) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	models[handle] = m
	nextHandle++
	return handle
}

func fetchModel(handle uint64) (bridgeModel, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	m, ok := models[handle]
	if !ok {
		return nil, errors.New("invalid model handle")
	}
	return m, nil
}

func modelParts(m bridgeModel) (*qbl.WeakEnsemble, []float64) {
	switch model := m.(type) {
	case *qbl.QBoostClassifier:
		return model.Ensemble, model.Weights
	case *qbl.QBoostRegressor:
		return model.Ensemble, model.Weights
	}
	return nil, nil
}

//export FreeModel
func FreeModel(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(models, uint64(handle))
}

func copyFloatSlice(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	src := unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length)
	dst := make([]float64, length)
	copy(dst, src)
	return dst, nil
}

func sliceFromPtr(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length), nil
}

func buildDense(ptr *C.double, rows, cols C.int) (*mat.Dense, error) {
	r := int(rows)
	c := int(cols)
	if r <= 0 || c <= 0 {
		return nil, errors.New("invalid matrix dimensions")
	}
	data, err := copyFloatSlice(ptr, r*c)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(r, c, data), nil
}

func buildSampler(kind C.int, seed int64) (qbl.Sampler, error) {
	switch kind {
	case samplerExact:
		return qbl.ExactSolver{}, nil
	case samplerAnneal:
		return qbl.SimulatedAnnealingSampler{Seed: seed}, nil
	case samplerRemote:
		env, err := config.Load()
		if err != nil {
			return nil, err
		}
		if err := env.RequireSampler(); err != nil {
			return nil, err
		}
		return qbl.NewHTTPSampler(env.SamplerURL, env.SamplerToken, env.SamplerSolver, env.SamplerTimeout, zerolog.Nop()), nil
	default:
		return nil, errors.New("unsupported sampler kind")
	}
}

//export TrainQBoost
func TrainQBoost(
	featuresPtr *C.double,
	rows C.int,
	cols C.int,
	targetPtr *C.double,
	task C.int,
	nEstimators C.int,
	maxDepth C.int,
	lambda C.double,
	samplerKind C.int,
	numReads C.int,
	autoScale C.int,
	numSpinReversalTransforms C.int,
	annealingTime C.double,
	seed C.longlong,
	threadsNum C.int,
) C.ulonglong {
	setLastError(nil)
	logSilenceOnce.Do(func() {
		logger.SetGlobalLogger(zerolog.Nop())
	})

	if nEstimators <= 0 {
		setLastError(errors.New("number of estimators must be positive"))
		return 0
	}

	features, err := buildDense(featuresPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 0
	}

	target, err := copyFloatSlice(targetPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 0
	}

	sampler, err := buildSampler(samplerKind, int64(seed))
	if err != nil {
		setLastError(err)
		return 0
	}

	opts := []qbl.EnsembleOption{qbl.WithThreads(max(1, int(threadsNum)))}
	if seed != 0 {
		opts = append(opts, qbl.WithSeed(int64(seed)))
	}
	samplerOptions := qbl.SamplerOptions{
		NumReads:                  int(numReads),
		AutoScale:                 autoScale != 0,
		NumSpinReversalTransforms: int(numSpinReversalTransforms),
		AnnealingTime:             float64(annealingTime),
	}

	ctx := context.Background()
	var model bridgeModel
	switch task {
	case taskClassifier:
		clf := qbl.NewQBoostClassifier(int(nEstimators), int(maxDepth), opts...)
		err = clf.Fit(ctx, features, target, sampler, float64(lambda), samplerOptions)
		model = clf
	case taskRegressor:
		reg := qbl.NewQBoostRegressor(int(nEstimators), int(maxDepth), opts...)
		err = reg.Fit(ctx, features, target, sampler, float64(lambda), samplerOptions)
		model = reg
	default:
		err = errors.New("unsupported task")
	}
	if err != nil {
		setLastError(err)
		return 0
	}

	return C.ulonglong(storeModel(model))
}

//export Predict
func Predict(
	handle C.ulonglong,
	featuresPtr *C.double,
	rows C.int,
	cols C.int,
	outputPtr *C.double,
) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}

	features, err := buildDense(featuresPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 2
	}

	prediction, err := model.Predict(features)
	if err != nil {
		setLastError(err)
		return 3
	}

	outSlice, err := sliceFromPtr(outputPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 4
	}
	copy(outSlice, prediction)
	return 0
}

//export GetWeights
func GetWeights(handle C.ulonglong, outputPtr *C.double, length C.int) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	_, weights := modelParts(model)
	if int(length) != len(weights) {
		setLastError(fmt.Errorf("model has %d weights, buffer holds %d", len(weights), int(length)))
		return 2
	}
	outSlice, err := sliceFromPtr(outputPtr, int(length))
	if err != nil {
		setLastError(err)
		return 3
	}
	copy(outSlice, weights)
	return 0
}

//export SaveModel
func SaveModel(handle C.ulonglong, path *C.char) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if err := qbl.SaveModel(C.GoString(path), model); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export RenderTrees
func RenderTrees(handle C.ulonglong, prefix, figureType, directory *C.char) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	goPrefix := C.GoString(prefix)
	goFigureType := C.GoString(figureType)
	goDir := C.GoString(directory)
	if goPrefix == "" {
		goPrefix = "tree"
	}
	if goFigureType == "" {
		goFigureType = "svg"
	}
	if goDir == "" {
		goDir = "."
	}
	ensemble, _ := modelParts(model)
	if err := ensemble.RenderTrees(goPrefix, goFigureType, goDir); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export LoadModel
func LoadModel(path *C.char, task C.int) C.ulonglong {
	setLastError(nil)
	goPath := C.GoString(path)

	var model bridgeModel
	var err error
	switch task {
	case taskClassifier:
		model, err = qbl.LoadQBoostClassifier(goPath)
	case taskRegressor:
		model, err = qbl.LoadQBoostRegressor(goPath)
	default:
		err = errors.New("unsupported task")
	}
	if err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeModel(model))
}

//export GetLastError
func GetLastError() *C.char {
	errStr := getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
