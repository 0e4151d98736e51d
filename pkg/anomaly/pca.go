package anomaly

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects standardized feature rows onto the principal components that
// together explain at least VarianceThreshold of the total variance. The
// projection matrix is learned per station and stored in the model artifact.
type PCA struct {
	// Components holds the retained eigenvectors, one column per kept
	// component: Components[i][j] is the weight of input feature i in
	// component j.
	Components [][]float64 `json:"components"`
}

// VarianceThreshold is the fraction of variance the retained components
// must explain.
const VarianceThreshold = 0.9

// Fit computes the principal components of rows and keeps the smallest
// prefix of them whose cumulative explained variance reaches the threshold.
func (p *PCA) Fit(rows [][]float64) error {
	if len(rows) < 2 {
		return errors.New("pca: need at least 2 rows to fit")
	}

	dims := len(rows[0])
	m := mat.NewDense(len(rows), dims, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return fmt.Errorf("pca: decomposition failed for %dx%d matrix", len(rows), dims)
	}

	variances := pc.VarsTo(nil)
	total := 0.0
	for _, v := range variances {
		total += v
	}
	if total == 0 {
		return errors.New("pca: zero total variance")
	}

	keep := len(variances)
	cum := 0.0
	for i, v := range variances {
		cum += v
		if cum/total >= VarianceThreshold {
			keep = i + 1
			break
		}
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	p.Components = make([][]float64, dims)
	for i := 0; i < dims; i++ {
		p.Components[i] = make([]float64, keep)
		for j := 0; j < keep; j++ {
			p.Components[i][j] = vectors.At(i, j)
		}
	}

	return nil
}

// NumComponents returns how many components were retained.
func (p *PCA) NumComponents() int {
	if len(p.Components) == 0 {
		return 0
	}
	return len(p.Components[0])
}

// Transform projects rows onto the retained components. Rows are expected
// to be standardized with the same scaler used at fit time, so no centering
// is applied here.
func (p *PCA) Transform(rows [][]float64) [][]float64 {
	keep := p.NumComponents()
	out := make([][]float64, len(rows))
	for i, row := range rows {
		proj := make([]float64, keep)
		for j := 0; j < keep; j++ {
			sum := 0.0
			for d, v := range row {
				sum += v * p.Components[d][j]
			}
			proj[j] = sum
		}
		out[i] = proj
	}
	return out
}
