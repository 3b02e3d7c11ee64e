package qbl

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestDecisionTreeHandlesConstantFeatures(t *testing.T) {
	rows := 16
	features := mat.NewDense(rows, 3, nil)
	target := make([]float64, rows)
	for i := 0; i < rows; i++ {
		features.Set(i, 0, 5)
		features.Set(i, 1, -1)
		target[i] = float64(i % 4)
	}

	tree := NewDecisionTreeRegressor(3, 1)
	if err := tree.Fit(features, target, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(tree.TreeNodes) != 1 {
		t.Fatalf("expected single node tree, got %d nodes", len(tree.TreeNodes))
	}
	if !tree.TreeNodes[0].IsLeaf() {
		t.Fatalf("expected the root to be a leaf")
	}
	if len(tree.LeafNodes) != 1 {
		t.Fatalf("expected 1 leaf, got %d", len(tree.LeafNodes))
	}
	if math.Abs(tree.LeafNodes[0].Prediction-1.5) > 1e-12 {
		t.Fatalf("expected leaf value 1.5, got %v", tree.LeafNodes[0].Prediction)
	}
}

func TestDecisionTreeStepTarget(t *testing.T) {
	features := mat.NewDense(12, 2, []float64{
		1, 0.0,
		1, 0.2,
		1, 0.4,
		1, 0.6,
		1, 0.8,
		1, 1.0,
		3, 0.0,
		3, 0.2,
		3, 0.4,
		3, 0.6,
		3, 0.8,
		3, 1.0,
	})
	target := []float64{1, 2, 1, 2, 1, 2, 10, 11, 10, 11, 10, 11}

	tree := NewDecisionTreeRegressor(1, 1)
	if err := tree.Fit(features, target, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}
	root := tree.TreeNodes[0]
	if root.FeatureNumber != 0 {
		t.Fatalf("expected split on feature 0, got %d", root.FeatureNumber)
	}
	if root.Threshold != 2 {
		t.Fatalf("expected threshold 2, got %v", root.Threshold)
	}
	if len(tree.LeafNodes) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(tree.LeafNodes))
	}

	prediction, err := tree.Predict(features)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for p, val := range prediction {
		expected := 1.5
		if p >= 6 {
			expected = 10.5
		}
		if math.Abs(val-expected) > 1e-12 {
			t.Fatalf("record %d: expected %v, got %v", p, expected, val)
		}
	}
}

func TestReweightOneMistake(t *testing.T) {
	distribution := []float64{0.25, 0.25, 0.25, 0.25}
	target := []float64{1, 1, -1, -1}
	prediction := []float64{1, 1, -1, 1}

	if err := reweight(distribution, math.Log(3)/2, target, prediction); err != nil {
		t.Fatalf("reweight: %v", err)
	}
	expected := []float64{1.0 / 6, 1.0 / 6, 1.0 / 6, 0.5}
	for ind := range expected {
		if math.Abs(distribution[ind]-expected[ind]) > 1e-12 {
			t.Fatalf("record %d: expected %v, got %v", ind, expected[ind], distribution[ind])
		}
	}
}
