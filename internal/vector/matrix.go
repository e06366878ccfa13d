package vector

import (
	"fmt"
	"math"
)

// Matrix is an immutable set of N row vectors of equal dimension with their
// L2 norms precomputed. It is safe for concurrent readers.
type Matrix struct {
	dimensions int
	rows       [][]float32
	norms      []float64
}

// NewMatrix copies rows into a new Matrix. All rows must have the same non-zero
// length and contain only finite values. A nil or empty rows slice yields an
// empty matrix (ranking against it fails with ErrEmptyCatalog).
func NewMatrix(rows [][]float32) (*Matrix, error) {
	m := &Matrix{}
	if len(rows) == 0 {
		return m, nil
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("row 0 has zero dimensions")
	}
	m.dimensions = dim
	m.rows = make([][]float32, len(rows))
	m.norms = make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(row), dim)
		}
		if !finite(row) {
			return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
		cp := make([]float32, dim)
		copy(cp, row)
		m.rows[i] = cp
		m.norms[i] = L2Norm(cp)
	}
	return m, nil
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// Dimensions returns the row length, or 0 for an empty matrix.
func (m *Matrix) Dimensions() int {
	if m == nil {
		return 0
	}
	return m.dimensions
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) ([]float32, error) {
	if i < 0 || i >= m.Len() {
		return nil, fmt.Errorf("row %d out of range [0, %d)", i, m.Len())
	}
	out := make([]float32, m.dimensions)
	copy(out, m.rows[i])
	return out, nil
}

func finite(x []float32) bool {
	for _, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
