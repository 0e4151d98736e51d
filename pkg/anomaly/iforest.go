package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	// numTrees is the ensemble size of the isolation forest.
	numTrees = 50

	// maxSampleSize caps the per-tree subsample. Isolation forests work on
	// small subsamples; larger ones only deepen trees without improving
	// separation.
	maxSampleSize = 256
)

// isoNode is one node of an isolation tree. Internal nodes carry a split,
// leaves carry the number of training samples that reached them.
type isoNode struct {
	Attr  int      `json:"attr"`
	Split float64  `json:"split"`
	Left  *isoNode `json:"left,omitempty"`
	Right *isoNode `json:"right,omitempty"`
	Size  int      `json:"size"`
}

func (n *isoNode) leaf() bool {
	return n.Left == nil && n.Right == nil
}

// IsolationForest is an ensemble of random-split trees. Points that isolate
// in few splits are anomalous. All randomness flows from the seed, so a
// forest fitted twice on the same data is identical.
type IsolationForest struct {
	Trees         []*isoNode `json:"trees"`
	SampleSize    int        `json:"sample_size"`
	Contamination float64    `json:"contamination"`

	// Offset is the raw-score quantile at the contamination rate, learned
	// during Fit. Decision values are raw scores shifted by it so that the
	// expected fraction of training points falls below zero.
	Offset float64 `json:"offset"`

	Seed int64 `json:"seed"`
}

// FitIsolationForest trains a forest of 50 trees on rows. contamination is
// the expected fraction of anomalous points and must lie in (0, 0.5].
func FitIsolationForest(rows [][]float64, contamination float64, seed int64) (*IsolationForest, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("isolation forest: no training rows")
	}
	if contamination <= 0 || contamination > 0.5 {
		return nil, fmt.Errorf("isolation forest: contamination %v out of range (0, 0.5]", contamination)
	}

	sampleSize := maxSampleSize
	if len(rows) < sampleSize {
		sampleSize = len(rows)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	rng := rand.New(rand.NewSource(seed))

	f := &IsolationForest{
		Trees:         make([]*isoNode, numTrees),
		SampleSize:    sampleSize,
		Contamination: contamination,
		Seed:          seed,
	}

	for t := 0; t < numTrees; t++ {
		indices := sampleWithoutReplacement(len(rows), sampleSize, rng)
		f.Trees[t] = buildIsoTree(rows, indices, 0, heightLimit, rng)
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = f.rawScore(row)
	}
	f.Offset = percentileLinear(scores, 100*contamination)

	return f, nil
}

// rawScore is the negated anomaly score of the point, in [-1, 0]. Higher
// means more normal.
func (f *IsolationForest) rawScore(x []float64) float64 {
	total := 0.0
	for _, tree := range f.Trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.Trees))
	return -math.Pow(2, -avg/averagePathLength(f.SampleSize))
}

// Decision returns the shifted score of the point: negative values are
// anomalous, positive values normal.
func (f *IsolationForest) Decision(x []float64) float64 {
	return f.rawScore(x) - f.Offset
}

// Predict labels the point +1 (normal) or -1 (anomaly).
func (f *IsolationForest) Predict(x []float64) int {
	if f.Decision(x) < 0 {
		return -1
	}
	return 1
}

func buildIsoTree(rows [][]float64, indices []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(indices) <= 1 {
		return &isoNode{Size: len(indices)}
	}

	dims := len(rows[indices[0]])
	splittable := make([]int, 0, dims)
	mins := make([]float64, dims)
	maxs := make([]float64, dims)
	for j := 0; j < dims; j++ {
		mins[j] = rows[indices[0]][j]
		maxs[j] = mins[j]
	}
	for _, i := range indices[1:] {
		for j := 0; j < dims; j++ {
			v := rows[i][j]
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
	}
	for j := 0; j < dims; j++ {
		if maxs[j] > mins[j] {
			splittable = append(splittable, j)
		}
	}
	if len(splittable) == 0 {
		// All points identical: nothing left to isolate.
		return &isoNode{Size: len(indices)}
	}

	attr := splittable[rng.Intn(len(splittable))]
	split := mins[attr] + rng.Float64()*(maxs[attr]-mins[attr])

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if rows[i][attr] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &isoNode{
		Attr:  attr,
		Split: split,
		Left:  buildIsoTree(rows, left, depth+1, limit, rng),
		Right: buildIsoTree(rows, right, depth+1, limit, rng),
		Size:  len(indices),
	}
}

func pathLength(n *isoNode, x []float64, depth int) float64 {
	if n.leaf() {
		return float64(depth) + averagePathLength(n.Size)
	}
	if x[n.Attr] < n.Split {
		return pathLength(n.Left, x, depth+1)
	}
	return pathLength(n.Right, x, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search among n points, used to normalize isolation depths.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

const eulerGamma = 0.5772156649015329

// sampleWithoutReplacement draws k distinct indices from [0, n) using a
// partial Fisher-Yates shuffle. When k == n the order is still shuffled,
// which keeps the draw sequence stable regardless of data size.
func sampleWithoutReplacement(n, k int, rng *rand.Rand) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}

// percentileLinear is the linearly interpolated percentile of values at p
// in [0, 100].
func percentileLinear(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
