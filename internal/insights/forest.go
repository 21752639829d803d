package insights

import (
	"math"
	"math/rand"
)

const eulerGamma = 0.5772156649015329

// isolationForest is fit on one batch and discarded with it.
type isolationForest struct {
	trees      []*isolationNode
	sampleSize int
}

type isolationNode struct {
	feature   int
	threshold float64
	left      *isolationNode
	right     *isolationNode
	size      int
}

func (n *isolationNode) leaf() bool {
	return n.left == nil
}

// fitIsolationForest grows trees on sub-samples drawn without replacement.
// The same seed and data always grow the same forest.
func fitIsolationForest(data [][]float64, trees, maxSamples int, seed int64) *isolationForest {
	rng := rand.New(rand.NewSource(seed))

	sampleSize := min(maxSamples, len(data))
	maxDepth := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	forest := &isolationForest{sampleSize: sampleSize}
	for t := 0; t < trees; t++ {
		sample := rng.Perm(len(data))[:sampleSize]
		forest.trees = append(forest.trees, growIsolationTree(data, sample, 0, maxDepth, rng))
	}
	return forest
}

func growIsolationTree(data [][]float64, rows []int, depth, maxDepth int, rng *rand.Rand) *isolationNode {
	if depth >= maxDepth || len(rows) <= 1 {
		return &isolationNode{size: len(rows)}
	}

	width := len(data[rows[0]])
	var splittable []int
	lows := make([]float64, width)
	highs := make([]float64, width)
	for f := 0; f < width; f++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range rows {
			lo = math.Min(lo, data[r][f])
			hi = math.Max(hi, data[r][f])
		}
		lows[f], highs[f] = lo, hi
		if hi > lo {
			splittable = append(splittable, f)
		}
	}
	if len(splittable) == 0 {
		return &isolationNode{size: len(rows)}
	}

	feature := splittable[rng.Intn(len(splittable))]
	threshold := lows[feature] + rng.Float64()*(highs[feature]-lows[feature])

	var left, right []int
	for _, r := range rows {
		if data[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	return &isolationNode{
		feature:   feature,
		threshold: threshold,
		left:      growIsolationTree(data, left, depth+1, maxDepth, rng),
		right:     growIsolationTree(data, right, depth+1, maxDepth, rng),
		size:      len(rows),
	}
}

// scoreSamples returns -2^(-E[h(x)]/c(psi)); lower is more anomalous.
func (f *isolationForest) scoreSamples(data [][]float64) []float64 {
	norm := averagePathLength(f.sampleSize)
	scores := make([]float64, len(data))
	for i, x := range data {
		total := 0.0
		for _, tree := range f.trees {
			total += pathLength(x, tree)
		}
		avg := total / float64(len(f.trees))
		scores[i] = -math.Pow(2, -avg/norm)
	}
	return scores
}

func pathLength(x []float64, node *isolationNode) float64 {
	depth := 0.0
	for !node.leaf() {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return depth + averagePathLength(node.size)
}

// averagePathLength is the expected path length of an unsuccessful search in
// a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}
