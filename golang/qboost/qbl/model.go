package qbl

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackExtension = ".msgpack"

func isMsgpack(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), msgpackExtension)
}

//SaveModel writes model to filename as indented JSON, or as msgpack when the name ends with .msgpack.
func SaveModel(filename string, model any) (err error) {
	var modelByteRepr []byte
	if isMsgpack(filename) {
		modelByteRepr, err = msgpack.Marshal(model)
	} else {
		modelByteRepr, err = json.MarshalIndent(model, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dest, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("can't open file %s to write: %w", filename, err)
	}
	defer func() {
		if closeErr := dest.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = dest.Write(modelByteRepr)
	return err
}

func loadModel(filename string, model any) error {
	source, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if isMsgpack(filename) {
		err = msgpack.Unmarshal(source, model)
	} else {
		err = json.Unmarshal(source, model)
	}
	if err != nil {
		return fmt.Errorf("decode model %s: %w", filename, err)
	}
	return nil
}

//LoadQBoostClassifier reads a classifier written by SaveModel.
func LoadQBoostClassifier(filename string) (*QBoostClassifier, error) {
	var model QBoostClassifier
	if err := loadModel(filename, &model); err != nil {
		return nil, err
	}
	if model.Ensemble == nil || model.Ensemble.Kind != KindClassifier {
		return nil, fmt.Errorf("%s does not hold a qboost classifier", filename)
	}
	return &model, nil
}

//LoadQBoostRegressor reads a regressor written by SaveModel.
func LoadQBoostRegressor(filename string) (*QBoostRegressor, error) {
	var model QBoostRegressor
	if err := loadModel(filename, &model); err != nil {
		return nil, err
	}
	if model.Ensemble == nil || model.Ensemble.Kind != KindRegressor {
		return nil, fmt.Errorf("%s does not hold a qboost regressor", filename)
	}
	return &model, nil
}

//LoadWeakEnsemble reads an AdaBoost ensemble written by SaveModel.
func LoadWeakEnsemble(filename string) (*WeakEnsemble, error) {
	var ensemble WeakEnsemble
	if err := loadModel(filename, &ensemble); err != nil {
		return nil, err
	}
	if len(ensemble.Estimators) == 0 {
		return nil, fmt.Errorf("%s does not hold a weak ensemble", filename)
	}
	return &ensemble, nil
}

//RenderTrees draws every estimator to picturesDirectory as <dumpPrefix>_<index>.<figureType>.
//figureType is one of png, svg and jpg.
func (ensemble *WeakEnsemble) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return fmt.Errorf("unknown figure type %q", figureType)
	}

	for graphInd, currentTree := range ensemble.Estimators {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		if err := renderTree(currentTree, graphvizType, path.Join(picturesDirectory, filename)); err != nil {
			return fmt.Errorf("render tree %d: %w", graphInd, err)
		}
	}
	return nil
}

func renderTree(tree *DecisionTree, format graphviz.Format, filename string) error {
	graphViz, graph, err := tree.DrawGraph()
	if err != nil {
		return err
	}
	defer graphViz.Close()
	defer graph.Close()
	return graphViz.RenderFilename(graph, format, filename)
}
