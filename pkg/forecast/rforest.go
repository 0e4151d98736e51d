package forecast

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	// regMaxDepth bounds tree depth; deeper trees overfit the short
	// per-station histories the keeper trains on.
	regMaxDepth = 6

	// regNumTrees is the ensemble size.
	regNumTrees = 50

	// regFeatureFraction is the share of features considered at each split.
	regFeatureFraction = 0.75

	// regMinSplit is the minimum number of samples a node needs to split.
	regMinSplit = 2
)

// regNode is one node of a regression tree. Leaves carry the mean target of
// the samples that reached them. Samples with a missing (NaN) split feature
// go down the left branch.
type regNode struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Left      *regNode `json:"left,omitempty"`
	Right     *regNode `json:"right,omitempty"`
	Value     float64  `json:"value"`
}

func (n *regNode) leaf() bool {
	return n.Left == nil && n.Right == nil
}

// RandomForest is a seeded bootstrap ensemble of depth-limited regression
// trees. Fitting twice with the same data and seed yields an identical
// forest, which is what makes forecasts reproducible.
type RandomForest struct {
	Trees       []*regNode `json:"trees"`
	NumFeatures int        `json:"num_features"`
	Seed        int64      `json:"seed"`
}

// FitRandomForest trains the ensemble on the supervised rows. Every tree is
// grown on a bootstrap resample, and each split draws 75% of the features.
func FitRandomForest(x [][]float64, y []float64, seed int64) (*RandomForest, error) {
	if len(x) == 0 {
		return nil, errors.New("random forest: no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("random forest: %d feature rows but %d targets", len(x), len(y))
	}

	dims := len(x[0])
	perSplit := int(regFeatureFraction * float64(dims))
	if perSplit < 1 {
		perSplit = 1
	}

	rng := rand.New(rand.NewSource(seed))

	f := &RandomForest{
		Trees:       make([]*regNode, regNumTrees),
		NumFeatures: dims,
		Seed:        seed,
	}

	for t := 0; t < regNumTrees; t++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		f.Trees[t] = buildRegTree(x, y, sample, 0, perSplit, rng)
	}

	return f, nil
}

// Predict returns the mean prediction of all trees for one feature vector.
func (f *RandomForest) Predict(x []float64) float64 {
	total := 0.0
	for _, tree := range f.Trees {
		total += predictTree(tree, x)
	}
	return total / float64(len(f.Trees))
}

func predictTree(n *regNode, x []float64) float64 {
	for !n.leaf() {
		v := x[n.Feature]
		if math.IsNaN(v) || v <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

func buildRegTree(x [][]float64, y []float64, indices []int, depth, perSplit int, rng *rand.Rand) *regNode {
	node := &regNode{Value: meanTarget(y, indices)}

	if depth >= regMaxDepth || len(indices) < regMinSplit || constantTarget(y, indices) {
		return node
	}

	feature, threshold, ok := bestSplit(x, y, indices, perSplit, rng)
	if !ok {
		return node
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		v := x[i][feature]
		if math.IsNaN(v) || v <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	node.Left = buildRegTree(x, y, left, depth+1, perSplit, rng)
	node.Right = buildRegTree(x, y, right, depth+1, perSplit, rng)
	return node
}

// bestSplit scans a random subset of features for the threshold that
// minimizes the summed squared error of the two children. Missing values
// always follow the left branch, so a candidate split on feature j places
// NaN samples left regardless of threshold.
func bestSplit(x [][]float64, y []float64, indices []int, perSplit int, rng *rand.Rand) (int, float64, bool) {
	dims := len(x[indices[0]])
	features := sampleFeatures(dims, perSplit, rng)

	bestSSE := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	type pair struct {
		v float64
		y float64
	}

	for _, j := range features {
		present := make([]pair, 0, len(indices))
		nanSum, nanSumSq := 0.0, 0.0
		nanCount := 0
		for _, i := range indices {
			v := x[i][j]
			if math.IsNaN(v) {
				nanSum += y[i]
				nanSumSq += y[i] * y[i]
				nanCount++
				continue
			}
			present = append(present, pair{v: v, y: y[i]})
		}
		if len(present) < 2 {
			continue
		}
		sort.Slice(present, func(a, b int) bool { return present[a].v < present[b].v })
		if present[0].v == present[len(present)-1].v {
			continue
		}

		// Prefix sums over the sorted present samples; NaN samples sit
		// permanently in the left child.
		leftSum, leftSumSq := nanSum, nanSumSq
		leftN := nanCount
		totalSum, totalSumSq := nanSum, nanSumSq
		for _, p := range present {
			totalSum += p.y
			totalSumSq += p.y * p.y
		}
		totalN := nanCount + len(present)

		for s := 0; s < len(present)-1; s++ {
			leftSum += present[s].y
			leftSumSq += present[s].y * present[s].y
			leftN++

			if present[s].v == present[s+1].v {
				continue
			}

			rightN := totalN - leftN
			rightSum := totalSum - leftSum
			rightSumSq := totalSumSq - leftSumSq

			sse := (leftSumSq - leftSum*leftSum/float64(leftN)) +
				(rightSumSq - rightSum*rightSum/float64(rightN))

			if sse < bestSSE {
				bestSSE = sse
				bestFeature = j
				bestThreshold = (present[s].v + present[s+1].v) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// sampleFeatures draws k distinct feature indices, in draw order.
func sampleFeatures(dims, k int, rng *rand.Rand) []int {
	if k >= dims {
		k = dims
	}
	perm := make([]int, dims)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(dims-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}

func meanTarget(y []float64, indices []int) float64 {
	sum := 0.0
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

func constantTarget(y []float64, indices []int) bool {
	first := y[indices[0]]
	for _, i := range indices[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}
