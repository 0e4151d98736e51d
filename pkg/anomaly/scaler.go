package anomaly

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each feature to zero mean and scales it to unit
// variance. It is fitted on a single station's history only; the learned
// parameters travel with the model artifact.
type StandardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Fit learns per-column mean and population standard deviation. Constant
// columns get a scale of 1 so they pass through centered instead of
// dividing by zero.
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("standard scaler: no rows to fit")
	}

	dims := len(rows[0])
	s.Means = make([]float64, dims)
	s.Stds = make([]float64, dims)

	col := make([]float64, len(rows))
	for j := 0; j < dims; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		s.Means[j] = stat.Mean(col, nil)
		s.Stds[j] = stat.PopStdDev(col, nil)
		if s.Stds[j] == 0 {
			s.Stds[j] = 1
		}
	}

	return nil
}

// Transform returns the standardized copy of rows.
func (s *StandardScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Means[j]) / s.Stds[j]
		}
		out[i] = scaled
	}
	return out
}
