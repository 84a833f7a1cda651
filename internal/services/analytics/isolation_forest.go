package analytics

import (
	"math"
	"math/rand"
	"sort"
)

// isolationForest is an in-process outlier scorer: anomalous rows isolate in
// fewer random splits, so short average path lengths mean high scores.
// Deterministic under a fixed seed. Immutable once fitted.
type isolationForest struct {
	trees         []*isoNode
	subsample     int
	contamination float64
	threshold     float64 // score cutoff separating outliers, set at fit time
}

type isoNode struct {
	left, right *isoNode
	splitAttr   int
	splitVal    float64
	size        int // external node: rows that landed here
}

type forestConfig struct {
	trees         int
	subsample     int
	contamination float64
	seed          int64
}

func defaultForestConfig() forestConfig {
	return forestConfig{
		trees:         100,
		subsample:     256,
		contamination: 0.1,
		seed:          42,
	}
}

// fitIsolationForest builds the forest over rows (n x features) and fixes the
// outlier threshold at the contamination quantile of the training scores.
func fitIsolationForest(rows [][]float64, cfg forestConfig) *isolationForest {
	n := len(rows)
	sub := cfg.subsample
	if sub > n {
		sub = n
	}
	rng := rand.New(rand.NewSource(cfg.seed))
	maxDepth := int(math.Ceil(math.Log2(float64(sub))))

	f := &isolationForest{
		trees:         make([]*isoNode, 0, cfg.trees),
		subsample:     sub,
		contamination: cfg.contamination,
	}
	for t := 0; t < cfg.trees; t++ {
		idx := rng.Perm(n)[:sub]
		sample := make([][]float64, sub)
		for i, j := range idx {
			sample[i] = rows[j]
		}
		f.trees = append(f.trees, buildIsoTree(sample, 0, maxDepth, rng))
	}

	scores := make([]float64, n)
	for i, row := range rows {
		scores[i] = f.score(row)
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	cut := int(float64(n) * (1 - cfg.contamination))
	if cut >= n {
		cut = n - 1
	}
	f.threshold = sorted[cut]
	return f
}

func buildIsoTree(rows [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(rows) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(rows)}
	}
	nFeat := len(rows[0])
	attr := rng.Intn(nFeat)

	mn, mx := rows[0][attr], rows[0][attr]
	for _, r := range rows[1:] {
		if r[attr] < mn {
			mn = r[attr]
		}
		if r[attr] > mx {
			mx = r[attr]
		}
	}
	if mn == mx {
		return &isoNode{size: len(rows)}
	}
	split := mn + rng.Float64()*(mx-mn)

	var left, right [][]float64
	for _, r := range rows {
		if r[attr] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &isoNode{
		splitAttr: attr,
		splitVal:  split,
		left:      buildIsoTree(left, depth+1, maxDepth, rng),
		right:     buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

// pathLength walks the row down the tree, adding the average-path adjustment
// c(size) at external nodes that still hold multiple rows.
func pathLength(node *isoNode, row []float64, depth float64) float64 {
	if node.left == nil && node.right == nil {
		return depth + avgPathLen(node.size)
	}
	if row[node.splitAttr] < node.splitVal {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLen is c(n): the average unsuccessful-search path length of a BST.
func avgPathLen(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}

// score returns the anomaly score in (0,1); values near 1 isolate quickly.
func (f *isolationForest) score(row []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += pathLength(t, row, 0)
	}
	mean := sum / float64(len(f.trees))
	c := avgPathLen(f.subsample)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -mean/c)
}

// isOutlier reports whether the score falls in the contamination tail.
func (f *isolationForest) isOutlier(score float64) bool {
	return score > f.threshold
}
