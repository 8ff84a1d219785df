package ensemble

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a regression tree. Fields are exported so a
// trained tree survives a JSON round trip.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Leaf      bool      `json:"leaf"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

type treeParams struct {
	maxDepth int
	minLeaf  int
}

// buildTree grows a regression tree over the rows named by idx, splitting
// on the feature/threshold pair with the largest squared-error reduction.
func buildTree(X [][]float64, y []float64, idx []int, depth int, p treeParams) *treeNode {
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return leaf(y, idx)
	}

	feature, threshold, ok := bestSplit(X, y, idx, p.minLeaf)
	if !ok {
		return leaf(y, idx)
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(X, y, left, depth+1, p),
		Right:     buildTree(X, y, right, depth+1, p),
	}
}

func leaf(y []float64, idx []int) *treeNode {
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return &treeNode{Leaf: true, Value: sum / float64(len(idx))}
}

// bestSplit scans every feature with prefix sums over the sorted column,
// minimizing the summed squared error of the two sides.
func bestSplit(X [][]float64, y []float64, idx []int, minLeaf int) (int, float64, bool) {
	n := len(idx)
	if n < 2*minLeaf {
		return 0, 0, false
	}

	bestFeature, bestThreshold := -1, 0.0
	bestScore := sse(y, idx)
	found := false

	order := make([]int, n)
	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		sumLeft, sqLeft := 0.0, 0.0
		sumTotal, sqTotal := 0.0, 0.0
		for _, i := range order {
			sumTotal += y[i]
			sqTotal += y[i] * y[i]
		}

		for k := 0; k < n-1; k++ {
			i := order[k]
			sumLeft += y[i]
			sqLeft += y[i] * y[i]

			left := k + 1
			right := n - left
			if left < minLeaf || right < minLeaf {
				continue
			}
			// No threshold exists between equal neighboring values.
			if X[order[k]][f] == X[order[k+1]][f] {
				continue
			}

			sumRight := sumTotal - sumLeft
			sqRight := sqTotal - sqLeft
			score := (sqLeft - sumLeft*sumLeft/float64(left)) +
				(sqRight - sumRight*sumRight/float64(right))
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = (X[order[k]][f] + X[order[k+1]][f]) / 2
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}

func sse(y []float64, idx []int) float64 {
	sum, sq := 0.0, 0.0
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	return sq - sum*sum/float64(len(idx))
}

// forestModel is a bagged set of regression trees averaged at prediction
// time.
type forestModel struct {
	Trees []*treeNode `json:"trees"`
}

func trainForest(X [][]float64, y []float64, seed int64, nTrees int, p treeParams) *forestModel {
	rng := rand.New(rand.NewSource(seed))
	n := len(y)

	trees := make([]*treeNode, 0, nTrees)
	for t := 0; t < nTrees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		trees = append(trees, buildTree(X, y, sample, 0, p))
	}
	return &forestModel{Trees: trees}
}

func (f *forestModel) predict(x []float64) float64 {
	sum := 0.0
	for _, tree := range f.Trees {
		sum += tree.predict(x)
	}
	return sum / float64(len(f.Trees))
}
