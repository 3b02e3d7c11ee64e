package qbl

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//TreeNode is a node of a tree. Tree is stored in an array. LeftIndex and RightIndex are equal to -1
//when the current node is a leaf otherwise they contain array indices of children.
//A leaf node contains LeafIndex that is an index of the LeafNodes array.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int // -1, -1 if it is a leaf
	LeafIndex             int // -1 if it is a non-leaf tree node
	NumberOfObjects       int
	CurrentLoss           float64
}

//GraphDescription returns the description of a tree node for tree rendering as a graph
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintln("loss: ", node.CurrentLoss))
	sb.WriteString(fmt.Sprintf("f_%d < %6.5f", node.FeatureNumber, node.Threshold))
	return sb.String()
}

func NewTreeNode() TreeNode {
	return TreeNode{0, -1, 0, -1, -1, -1, 0, 0}
}

//NewTreeNodeFromSplitInfo creates a new tree node and extract a features index and a split threshold
//from a BestSplit object.
func NewTreeNodeFromSplitInfo(splitInfo BestSplit, treeNodeId int) TreeNode {
	treeNode := NewTreeNode()
	treeNode.TreeNodeId = treeNodeId
	treeNode.FeatureNumber = splitInfo.featureIndex
	treeNode.Threshold = splitInfo.threshold
	treeNode.NumberOfObjects = splitInfo.numberOfObjects
	treeNode.CurrentLoss = splitInfo.currentValue
	return treeNode
}

//IsLeaf returns whether this node is a LeafNode.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//LeafNode stores the prediction of a leaf together with the amount of data that reached it.
type LeafNode struct {
	LeafNodeId      int
	Prediction      float64
	NumberOfObjects int
	Weight          float64
}

//GraphDescription returns the description of a leaf node for tree rendering as a graph
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString(fmt.Sprintf("value: %6.3f\n", node.Prediction))
	sb.WriteString(fmt.Sprintf("weight: %6.4f\n", node.Weight))
	sb.WriteString(fmt.Sprintln(node.NumberOfObjects))
	return sb.String()
}

//DecisionTree is a bounded-depth CART tree trained on weighted samples.
//Loss selects the flavour: "gini" for classification, "mse" for regression.
type DecisionTree struct {
	Loss       string
	MaxDepth   int // <= 0 grows the tree until leaves are pure
	Seed       int64
	ThreadsNum int
	NFeatures  int
	Classes    []float64
	TreeNodes  []TreeNode
	LeafNodes  []LeafNode
}

//NewDecisionTreeClassifier creates an untrained classification tree.
func NewDecisionTreeClassifier(maxDepth int, seed int64) *DecisionTree {
	return &DecisionTree{Loss: GiniLoss{}.Name(), MaxDepth: maxDepth, Seed: seed, ThreadsNum: 1}
}

//NewDecisionTreeRegressor creates an untrained regression tree.
func NewDecisionTreeRegressor(maxDepth int, seed int64) *DecisionTree {
	return &DecisionTree{Loss: MseLoss{}.Name(), MaxDepth: maxDepth, Seed: seed, ThreadsNum: 1}
}

//IsFitted reports whether the tree has been built.
func (tree *DecisionTree) IsFitted() bool {
	return len(tree.TreeNodes) > 0
}

//Fit builds the tree on features and target. A nil sampleWeight means equal weights.
func (tree *DecisionTree) Fit(features *mat.Dense, target []float64, sampleWeight []float64) error {
	h, w := features.Dims()
	if h == 0 {
		return fmt.Errorf("fit tree on empty data: %w", ErrDimensionMismatch)
	}
	if len(target) != h {
		return fmt.Errorf("target length %d, features height %d: %w", len(target), h, ErrDimensionMismatch)
	}
	if sampleWeight == nil {
		sampleWeight = make([]float64, h)
		for ind := range sampleWeight {
			sampleWeight[ind] = 1
		}
	}
	if len(sampleWeight) != h {
		return fmt.Errorf("sample weight length %d, features height %d: %w", len(sampleWeight), h, ErrDimensionMismatch)
	}

	loss := splitLossByName(tree.Loss)
	data := &treeData{
		features:   features,
		target:     target,
		classIndex: make([]int, h),
		weight:     sampleWeight,
		loss:       loss,
	}
	tree.Classes = nil
	if _, ok := loss.(GiniLoss); ok {
		tree.Classes = uniqueSorted(target)
		for p, val := range target {
			data.classIndex[p] = sort.SearchFloat64s(tree.Classes, val)
		}
	}
	data.width = loss.width(len(tree.Classes))

	tree.NFeatures = w
	tree.TreeNodes = make([]TreeNode, 0)
	tree.LeafNodes = make([]LeafNode, 0)

	rnd := rand.New(rand.NewSource(tree.Seed))
	tree.buildTree(data, makeRecordIds(h), 0, rnd)
	return nil
}

//buildTree recurrently builds a tree node over rows and returns its index.
func (tree *DecisionTree) buildTree(data *treeData, rows []int, currentDepth int, rnd *rand.Rand) int {
	stats := data.stats(rows)
	totalWeight := data.loss.totalWeight(stats)
	impurity := data.loss.impurity(stats)

	depthAllowed := tree.MaxDepth <= 0 || currentDepth < tree.MaxDepth
	if depthAllowed && len(rows) >= 2 && totalWeight > 0 && impurity > 1e-12*totalWeight {
		featureOrder := rnd.Perm(tree.NFeatures)
		bestSplit := theBestSplit(data, rows, featureOrder, tree.ThreadsNum)
		if bestSplit != nil {
			treeNodeId := len(tree.TreeNodes)
			tree.TreeNodes = append(tree.TreeNodes, NewTreeNodeFromSplitInfo(*bestSplit, treeNodeId))

			leftRows, rightRows := splitRows(data.features, rows, *bestSplit)

			leftNodeId := tree.buildTree(data, leftRows, currentDepth+1, rnd)
			tree.TreeNodes[treeNodeId].LeftIndex = leftNodeId

			rightNodeId := tree.buildTree(data, rightRows, currentDepth+1, rnd)
			tree.TreeNodes[treeNodeId].RightIndex = rightNodeId

			return treeNodeId
		}
	}

	treeNodeId := len(tree.TreeNodes)
	currentTreeNode := NewTreeNode()
	currentTreeNode.TreeNodeId = treeNodeId
	currentTreeNode.NumberOfObjects = len(rows)
	currentTreeNode.CurrentLoss = impurity

	leafNodeId := len(tree.LeafNodes)
	currentTreeNode.LeafIndex = leafNodeId
	tree.TreeNodes = append(tree.TreeNodes, currentTreeNode)
	tree.LeafNodes = append(tree.LeafNodes, LeafNode{
		LeafNodeId:      leafNodeId,
		Prediction:      data.loss.leafValue(stats, tree.Classes),
		NumberOfObjects: len(rows),
		Weight:          totalWeight,
	})
	return treeNodeId
}

func splitRows(features *mat.Dense, rows []int, split BestSplit) (leftRows, rightRows []int) {
	for _, row := range rows {
		if features.At(row, split.featureIndex) < split.threshold {
			leftRows = append(leftRows, row)
		} else {
			rightRows = append(rightRows, row)
		}
	}
	return
}

//Predict infers one value per row of features.
func (tree *DecisionTree) Predict(features *mat.Dense) ([]float64, error) {
	if !tree.IsFitted() {
		return nil, ErrNotFitted
	}
	h, w := features.Dims()
	if w != tree.NFeatures {
		return nil, fmt.Errorf("tree trained on %d features, got %d: %w", tree.NFeatures, w, ErrDimensionMismatch)
	}

	prediction := make([]float64, h)
	for p := 0; p < h; p++ {
		ind := 0
		for tree.TreeNodes[ind].LeafIndex == -1 {
			if features.At(p, tree.TreeNodes[ind].FeatureNumber) < tree.TreeNodes[ind].Threshold {
				ind = tree.TreeNodes[ind].LeftIndex
			} else {
				ind = tree.TreeNodes[ind].RightIndex
			}
		}
		prediction[p] = tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].Prediction
	}
	return prediction, nil
}

//Clone returns a deep copy of the tree.
func (tree *DecisionTree) Clone() *DecisionTree {
	clone := *tree
	clone.Classes = append([]float64(nil), tree.Classes...)
	clone.TreeNodes = append([]TreeNode(nil), tree.TreeNodes...)
	clone.LeafNodes = append([]LeafNode(nil), tree.LeafNodes...)
	return &clone
}

//GetLeafDescription returns the description of a leaf node
func (tree *DecisionTree) GetLeafDescription(ind int) string {
	return tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].GraphDescription()
}

//GetNodeDescription returns the description of a split node
func (tree *DecisionTree) GetNodeDescription(ind int) string {
	return tree.TreeNodes[ind].GraphDescription()
}

func recurrentDraw(g *cgraph.Graph, tree *DecisionTree, nodeNumber int, parentNode *cgraph.Node) error {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	if err != nil {
		return err
	}

	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.GetLeafDescription(nodeNumber))
		currentNode.Set("shape", "box")
		return nil
	}

	currentNode.Set("label", tree.GetNodeDescription(nodeNumber))
	if err := recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode); err != nil {
		return err
	}
	return recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode)
}

//DrawGraph lays the tree out as a graphviz graph. The caller closes both returned objects.
func (tree *DecisionTree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	if !tree.IsFitted() {
		return nil, nil, ErrNotFitted
	}
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		graphViz.Close()
		return nil, nil, err
	}

	if err := recurrentDraw(graph, tree, 0, nil); err != nil {
		graph.Close()
		graphViz.Close()
		return nil, nil, err
	}

	return graphViz, graph, nil
}

func uniqueSorted(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	unique := sorted[:0]
	for _, val := range sorted {
		if len(unique) == 0 || val != unique[len(unique)-1] {
			unique = append(unique, val)
		}
	}
	return unique
}
