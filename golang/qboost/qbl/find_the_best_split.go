package qbl

import (
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

//treeData is the training set of one tree: features, targets, class indices of targets and sample weights.
type treeData struct {
	features   *mat.Dense
	target     []float64
	classIndex []int
	weight     []float64
	loss       SplitLoss
	width      int
}

//stats accumulates the loss statistics of the given rows.
func (data *treeData) stats(rows []int) []float64 {
	accum := make([]float64, data.width)
	for _, row := range rows {
		data.loss.accumulate(accum, data.target[row], data.classIndex[row], data.weight[row])
	}
	return accum
}

//BestSplit contains results of the split selection algorithm.
type BestSplit struct {
	bestValue, currentValue float64
	featureIndex, orderIndex int
	threshold                float64
	validSplit               bool
	numberOfObjects          int
}

//OneStepInfo contains the accumulated statistics after passing a cluster of equal values of a feature.
type OneStepInfo struct {
	stats        []float64
	InterFeature float64
}

//iterateSplits walks through rows sorted by feature q in the order of the sweep and
//records the accumulated statistics at every border between clusters of equal feature values.
//The statistics of all rows are returned as total.
func iterateSplits(order *sweep, data *treeData, q int, featuresAs []int) (passInfo []OneStepInfo, total []float64) {
	accum := make([]float64, data.width)
	prevRow := -1

	for pos, ok := order.next(); ok; pos, ok = order.next() {
		currentRow := featuresAs[pos]
		if prevRow != -1 && data.features.At(prevRow, q) != data.features.At(currentRow, q) {
			passInfo = append(passInfo, OneStepInfo{
				stats:        append([]float64(nil), accum...),
				InterFeature: data.features.At(prevRow, q),
			})
		}
		data.loss.accumulate(accum, data.target[currentRow], data.classIndex[currentRow], data.weight[currentRow])
		prevRow = currentRow
	}
	return passInfo, accum
}

//selectTheBestSplitCluster combines the downward and the upward passes and selects the best border
func selectTheBestSplitCluster(data *treeData, bestSplit *BestSplit, q int, downPassInfo, upPassInfo []OneStepInfo) {
	firstIter := true

	if len(downPassInfo) != len(upPassInfo) {
		log.Panic().Int("down", len(downPassInfo)).Int("up", len(upPassInfo)).Msg("different dimensions of up and down pass infos")
	}
	h := len(downPassInfo)

	bestSplit.featureIndex = q

	for hInd := 0; hInd < h; hInd++ {
		left, right := downPassInfo[hInd], upPassInfo[h-1-hInd]
		currentLossValue := data.loss.impurity(left.stats) + data.loss.impurity(right.stats)
		if firstIter || bestSplit.bestValue > currentLossValue {
			firstIter = false
			bestSplit.bestValue = currentLossValue
			bestSplit.threshold = (left.InterFeature + right.InterFeature) / 2.0
			bestSplit.orderIndex = hInd
		}
	}
	bestSplit.validSplit = !firstIter
}

//scanForSplitCluster performs argsort of the selected feature column over rows,
//iterates through splits upside down and downside up and selects the best split
//in the current column.
func scanForSplitCluster(data *treeData, rows []int, q int) (bestSplit BestSplit) {
	featuresAs := columnArgsort(data.features, rows, q)
	h := len(featuresAs)

	downPassInfo, total := iterateSplits(forwardSweep(h), data, q, featuresAs)
	upPassInfo, _ := iterateSplits(backwardSweep(h), data, q, featuresAs)

	selectTheBestSplitCluster(data, &bestSplit, q, downPassInfo, upPassInfo)
	bestSplit.currentValue = data.loss.impurity(total)
	bestSplit.numberOfObjects = h
	return
}

//theBestSplit finds the best possible split of rows. Features are scanned in featureOrder,
//a later feature wins only with a strictly smaller loss.
//Columns are scanned on threadsNum goroutines when threadsNum is above one.
func theBestSplit(data *treeData, rows []int, featureOrder []int, threadsNum int) *BestSplit {
	result := make([]BestSplit, len(featureOrder))

	if threadsNum <= 1 {
		for ind, q := range featureOrder {
			result[ind] = scanForSplitCluster(data, rows, q)
		}
	} else {
		var taskPool errgroup.Group
		taskPool.SetLimit(threadsNum)
		for ind, q := range featureOrder {
			ind, q := ind, q
			taskPool.Go(func() error {
				result[ind] = scanForSplitCluster(data, rows, q)
				return nil
			})
		}
		// scans never fail
		_ = taskPool.Wait()
	}

	minimalLoss := 0.0
	bestIndex := 0
	firstTime := true

	for ind, currentSplit := range result {
		if currentSplit.validSplit && (firstTime || minimalLoss > currentSplit.bestValue) {
			firstTime = false
			minimalLoss = currentSplit.bestValue
			bestIndex = ind
		}
	}

	if firstTime {
		return nil
	}

	return &result[bestIndex]
}

//columnArgsort returns rows ordered by the value of feature q. Equal values keep the order of rows.
func columnArgsort(features *mat.Dense, rows []int, q int) []int {
	featuresAs := append([]int(nil), rows...)
	sort.SliceStable(featuresAs, func(i, j int) bool {
		return features.At(featuresAs[i], q) < features.At(featuresAs[j], q)
	})
	return featuresAs
}
