// Package covariance estimates covariance matrices from observed samples.
package covariance

import (
	"gomvdist/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Empirical returns the sample covariance of samples, one observation per row
// and one variable per column, normalised by n-1.
func Empirical(samples mat.Matrix) (*mat.SymDense, error) {
	if samples == nil {
		return nil, errors.InvalidInput("no samples")
	}
	rows, cols := samples.Dims()
	if rows < 2 {
		return nil, errors.InvalidInput("at least two observations are required")
	}

	columns := make([]stats.Float64Data, cols)
	for j := range columns {
		columns[j] = mat.Col(nil, j, samples)
	}

	cov := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			c, err := stats.Covariance(columns[i], columns[j])
			if err != nil {
				return nil, errors.Wrapf(errors.WithCode(errors.CodeInvalidInput, err), "covariance of columns %d and %d", i, j)
			}
			cov.SetSym(i, j, c)
		}
	}
	return cov, nil
}

// Means returns the column means of samples.
func Means(samples mat.Matrix) ([]float64, error) {
	if samples == nil {
		return nil, errors.InvalidInput("no samples")
	}
	_, cols := samples.Dims()
	means := make([]float64, cols)
	for j := range means {
		m, err := stats.Mean(mat.Col(nil, j, samples))
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		means[j] = m
	}
	return means, nil
}
