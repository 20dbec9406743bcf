package sparsity

import (
	"errors"
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// ErrNotInPattern is returned when writing an entry the pattern excludes
var ErrNotInPattern = errors.New("sparsity: entry not in pattern")

// Matrix is a square CSR matrix whose values live in an arena sized by a
// finalized Pattern. The pattern is shared and never modified.
type Matrix struct {
	pattern *Pattern
	values  []float64
}

// NewMatrix allocates a zero matrix over p
func NewMatrix(p *Pattern) *Matrix {
	return &Matrix{pattern: p, values: make([]float64, p.NNZ())}
}

// NewMatrixFrom wraps an existing values arena, which must have length p.NNZ()
func NewMatrixFrom(p *Pattern, values []float64) (*Matrix, error) {
	if len(values) != p.NNZ() {
		return nil, fmt.Errorf("sparsity: %d values for %d pattern entries", len(values), p.NNZ())
	}
	return &Matrix{pattern: p, values: values}, nil
}

func (m *Matrix) Pattern() *Pattern { return m.pattern }

// Values exposes the value arena in pattern order
func (m *Matrix) Values() []float64 { return m.values }

// Dims returns the matrix size
func (m *Matrix) Dims() (r, c int) {
	n := m.pattern.NumRows()
	return n, n
}

// At returns entry (r, c), zero outside the pattern
func (m *Matrix) At(r, c int) float64 {
	if k := m.pattern.Find(r, c); k >= 0 {
		return m.values[k]
	}
	return 0
}

// T returns the transpose as a gonum matrix view
func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// AddAt adds v to entry (r, c)
func (m *Matrix) AddAt(r, c int, v float64) error {
	k := m.pattern.Find(r, c)
	if k < 0 {
		return fmt.Errorf("%w: (%d,%d)", ErrNotInPattern, r, c)
	}
	m.values[k] += v
	return nil
}

// SetAt overwrites entry (r, c)
func (m *Matrix) SetAt(r, c int, v float64) error {
	k := m.pattern.Find(r, c)
	if k < 0 {
		return fmt.Errorf("%w: (%d,%d)", ErrNotInPattern, r, c)
	}
	m.values[k] = v
	return nil
}

// Diagonal copies the diagonal into a new slice
func (m *Matrix) Diagonal() []float64 {
	n := m.pattern.NumRows()
	d := make([]float64, n)
	for r := 0; r < n; r++ {
		d[r] = m.At(r, r)
	}
	return d
}

// CSR returns a sparse.CSR view sharing the pattern and value storage.
// Writes through the view must stay inside the pattern.
func (m *Matrix) CSR() *sparse.CSR {
	n := m.pattern.NumRows()
	return sparse.NewCSR(n, n, m.pattern.RowPtr, m.pattern.ColIdx, m.values)
}

// MulVecTo computes dst = m*x
func (m *Matrix) MulVecTo(dst, x []float64) {
	clear(dst)
	sparse.MulMatRawVec(m.CSR(), x, dst)
}

// Zero resets every value, keeping the pattern
func (m *Matrix) Zero() {
	clear(m.values)
}

// Clone copies the values; the pattern is shared
func (m *Matrix) Clone() *Matrix {
	return &Matrix{pattern: m.pattern, values: append([]float64(nil), m.values...)}
}

// Add accumulates o into m. Both must share the same pattern structure.
func (m *Matrix) Add(o *Matrix) error {
	if m.pattern != o.pattern && !m.pattern.Equal(o.pattern) {
		return fmt.Errorf("sparsity: adding matrices with different patterns")
	}
	for k, v := range o.values {
		m.values[k] += v
	}
	return nil
}

// Dense expands the matrix into a gonum dense matrix
func (m *Matrix) Dense() *mat.Dense {
	if m.pattern.NumRows() == 0 {
		return &mat.Dense{}
	}
	return m.CSR().ToDense()
}

// IsSymmetric reports whether |a_rc - a_cr| <= tol*max(1,|a_rc|) everywhere.
// An entry whose mirror is outside the pattern is compared against zero.
func (m *Matrix) IsSymmetric(tol float64) bool {
	p := m.pattern
	for r := 0; r < p.NumRows(); r++ {
		for k := p.RowPtr[r]; k < p.RowPtr[r+1]; k++ {
			c := p.ColIdx[k]
			if c == r {
				continue
			}
			a, b := m.values[k], m.At(c, r)
			if math.Abs(a-b) > tol*math.Max(1, math.Abs(a)) {
				return false
			}
		}
	}
	return true
}

// MaxAbsDiagonal returns the largest diagonal magnitude
func (m *Matrix) MaxAbsDiagonal() float64 {
	var big float64
	for _, v := range m.Diagonal() {
		big = math.Max(big, math.Abs(v))
	}
	return big
}
