// Package layout adapts caller-shaped problem data to the routine's flat,
// column-major, integer-coded argument convention. Nothing here mutates
// caller data or touches shared state.
package layout

import (
	"gomvdist/domain/bounds"
	"gomvdist/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// ToColumnMajor flattens m so that all of column 0 precedes column 1, and so on.
// For an r×c matrix, out[j*r+i] == m.At(i, j).
func ToColumnMajor(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, r*c)
	for j := 0; j < c; j++ {
		col := out[j*r : (j+1)*r]
		for i := range col {
			col[i] = m.At(i, j)
		}
	}
	return out
}

// FromColumnMajor rebuilds an r×c matrix from a column-major buffer.
func FromColumnMajor(r, c int, data []float64) *mat.Dense {
	// A column-major r×c buffer is the row-major layout of the c×r transpose.
	return mat.DenseCopyOf(mat.NewDense(c, r, data).T())
}

// EncodeBounds maps kinds to routine codes, preserving order.
func EncodeBounds(kinds []bounds.Kind) []int32 {
	codes := make([]int32, len(kinds))
	for i, k := range kinds {
		codes[i] = k.Code()
	}
	return codes
}

// DecodeBounds is the inverse of EncodeBounds.
func DecodeBounds(codes []int32) ([]bounds.Kind, error) {
	kinds := make([]bounds.Kind, len(codes))
	for i, code := range codes {
		k, err := bounds.FromCode(code)
		if err != nil {
			return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "decode bound %d", i)
		}
		kinds[i] = k
	}
	return kinds, nil
}

// FromRows builds a dense matrix from row slices, rejecting empty and ragged input.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.ContractViolation("matrix must have at least one row and one column")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, errors.ContractViolation("ragged matrix: row %d has %d columns, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}

// Problem describes the shape-bearing inputs shared by both operations.
type Problem struct {
	Covariance  mat.Matrix
	Constraints mat.Matrix
	Lower       []float64
	Upper       []float64
	Kinds       []bounds.Kind
}

// Check validates that every piece agrees with the covariance n×n and
// constraints m×n shapes and returns (n, m). Mismatches must never reach the routine.
func (p Problem) Check() (n, m int, err error) {
	if isNil(p.Covariance) {
		return 0, 0, errors.ContractViolation("covariance matrix is required")
	}
	if isNil(p.Constraints) {
		return 0, 0, errors.ContractViolation("constraint matrix is required")
	}
	cr, cc := p.Covariance.Dims()
	if cr == 0 || cc == 0 {
		return 0, 0, errors.ContractViolation("covariance matrix is empty")
	}
	if cr != cc {
		return 0, 0, errors.ContractViolation("covariance matrix is %d×%d, want square", cr, cc)
	}
	n = cr

	var kc int
	m, kc = p.Constraints.Dims()
	if m == 0 {
		return 0, 0, errors.ContractViolation("constraint matrix has no rows")
	}
	if kc != n {
		return 0, 0, errors.ContractViolation("constraint matrix has %d columns, covariance dimension is %d", kc, n)
	}
	if err := checkLen("lower", len(p.Lower), m); err != nil {
		return 0, 0, err
	}
	if err := checkLen("upper", len(p.Upper), m); err != nil {
		return 0, 0, err
	}
	if err := checkLen("bound kinds", len(p.Kinds), m); err != nil {
		return 0, 0, err
	}
	for i, k := range p.Kinds {
		if !k.Valid() {
			return 0, 0, errors.ContractViolation("bound kind %d is invalid (%d)", i, int(k))
		}
	}
	return n, m, nil
}

// isNil reports whether m is nil, including a nil pointer of a gonum
// matrix type wrapped in a non-nil interface.
func isNil(m mat.Matrix) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *mat.Dense:
		return v == nil
	case *mat.SymDense:
		return v == nil
	case *mat.TriDense:
		return v == nil
	case *mat.DiagDense:
		return v == nil
	case *mat.BandDense:
		return v == nil
	case *mat.VecDense:
		return v == nil
	}
	return false
}

// CheckShift validates the non-centrality vector against m constraint rows.
func CheckShift(shift []float64, m int) error {
	return checkLen("shift", len(shift), m)
}

func checkLen(name string, got, want int) error {
	if got != want {
		return errors.ContractViolation("%s has length %d, want %d (one per constraint row)", name, got, want)
	}
	return nil
}
