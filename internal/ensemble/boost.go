package ensemble

// boostModel is a gradient-boosted stack of shallow regression trees:
// a base estimate plus shrunken corrections fit to residuals.
type boostModel struct {
	Base      float64     `json:"base"`
	Shrinkage float64     `json:"shrinkage"`
	Trees     []*treeNode `json:"trees"`
}

func trainBoost(X [][]float64, y []float64, nTrees int, shrinkage float64, p treeParams) *boostModel {
	n := len(y)

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	current := make([]float64, n)
	residual := make([]float64, n)
	for i := range current {
		current[i] = base
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	trees := make([]*treeNode, 0, nTrees)
	for t := 0; t < nTrees; t++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		tree := buildTree(X, residual, idx, 0, p)
		trees = append(trees, tree)
		for i := range current {
			current[i] += shrinkage * tree.predict(X[i])
		}
	}

	return &boostModel{Base: base, Shrinkage: shrinkage, Trees: trees}
}

func (b *boostModel) predict(x []float64) float64 {
	out := b.Base
	for _, tree := range b.Trees {
		out += b.Shrinkage * tree.predict(x)
	}
	return out
}
