package qbl

//SplitLoss describes how a tree accumulates statistics of a set of records,
//how impure that set is and what a leaf built from it predicts.
//Statistics are additive: the statistics of a union are the sums of the parts.
type SplitLoss interface {
	Name() string
	width(nClasses int) int
	accumulate(stats []float64, target float64, classIndex int, weight float64)
	//impurity returns the impurity of the set multiplied by its total weight.
	impurity(stats []float64) float64
	totalWeight(stats []float64) float64
	leafValue(stats []float64, classes []float64) float64
}

//GiniLoss is the weighted Gini impurity used by classification trees.
type GiniLoss struct{}

func (GiniLoss) Name() string { return "gini" }

func (GiniLoss) width(nClasses int) int { return nClasses }

func (GiniLoss) accumulate(stats []float64, _ float64, classIndex int, weight float64) {
	stats[classIndex] += weight
}

func (l GiniLoss) impurity(stats []float64) float64 {
	total := l.totalWeight(stats)
	if total <= 0 {
		return 0
	}
	sq := 0.0
	for _, v := range stats {
		sq += v * v
	}
	return total - sq/total
}

func (GiniLoss) totalWeight(stats []float64) float64 {
	s := 0.0
	for _, v := range stats {
		s += v
	}
	return s
}

func (GiniLoss) leafValue(stats []float64, classes []float64) float64 {
	best := 0
	for ind := 1; ind < len(stats); ind++ {
		if stats[ind] > stats[best] {
			best = ind
		}
	}
	return classes[best]
}

//MseLoss is the weighted squared error used by regression trees.
//Statistics are the total weight, the weighted sum and the weighted sum of squares.
type MseLoss struct{}

func (MseLoss) Name() string { return "mse" }

func (MseLoss) width(int) int { return 3 }

func (MseLoss) accumulate(stats []float64, target float64, _ int, weight float64) {
	stats[0] += weight
	stats[1] += weight * target
	stats[2] += weight * target * target
}

func (MseLoss) impurity(stats []float64) float64 {
	if stats[0] <= 0 {
		return 0
	}
	v := stats[2] - stats[1]*stats[1]/stats[0]
	if v < 0 {
		return 0
	}
	return v
}

func (MseLoss) totalWeight(stats []float64) float64 { return stats[0] }

func (MseLoss) leafValue(stats []float64, _ []float64) float64 {
	if stats[0] <= 0 {
		return 0
	}
	return stats[1] / stats[0]
}

func splitLossByName(name string) SplitLoss {
	if name == (MseLoss{}).Name() {
		return MseLoss{}
	}
	return GiniLoss{}
}
