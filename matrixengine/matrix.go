/*
Package matrixengine fills and composes the lower-triangular transfer
matrices that carry a chain's concentration vector forward in time:
a pure-decay matrix D(t), a flux-dependent transmutation matrix T(t, f),
and their products, all with the incremental-reuse contract the chain
builder depends on (only rows r_new..L-1 are recomputed on each solve).
*/
package matrixengine

import "math"

// DegeneracyTolerance is the relative closeness at which two rate constants
// on the same chain interval are treated as coincident poles, switching
// that element's Bateman expansion onto the repeated-root branch described
// here. Detecting exact equality is too brittle; pulling in a tolerance
// absorbs the floating-point round-off a direct translation would not.
const DegeneracyTolerance = 1e-10

// Matrix is a lower-triangular transfer matrix of dimension Dim: row i
// holds i+1 entries for columns 0..i.
type Matrix struct {
	Dim  int
	rows [][]float64
}

// Get returns element (i,j); j must be <= i.
func (m *Matrix) Get(i, j int) float64 { return m.rows[i][j] }

// Set assigns element (i,j); j must be <= i.
func (m *Matrix) Set(i, j int, v float64) { m.rows[i][j] = v }

// Row returns the backing slice for row i, columns 0..i. Callers must not
// retain it past the next resize of this matrix.
func (m *Matrix) Row(i int) []float64 { return m.rows[i] }

// NewMatrix returns a zeroed Matrix of the given dimension.
func NewMatrix(dim int) *Matrix {
	m := &Matrix{Dim: dim, rows: make([][]float64, dim)}
	for i := range m.rows {
		m.rows[i] = make([]float64, i+1)
	}
	return m
}

// Identity returns the dim x dim identity transfer matrix (zero elapsed
// time: nothing has decayed or transmuted yet).
func Identity(dim int) *Matrix {
	m := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		m.rows[i][i] = 1
	}
	return m
}

// Resize returns a new Matrix of newDim, reusing old's rows [0, rNew) by
// reference (a chain-builder contract: those rows are known unchanged)
// and allocating fresh storage for rows [rNew, newDim) to be refilled by
// the caller. old may be nil, or smaller than rNew, in which case every
// row from min(rNew, old rows) up is freshly allocated.
func Resize(old *Matrix, newDim, rNew int) *Matrix {
	m := &Matrix{Dim: newDim, rows: make([][]float64, newDim)}
	oldDim := 0
	if old != nil {
		oldDim = old.Dim
	}
	for i := 0; i < newDim; i++ {
		if i < rNew && i < oldDim {
			m.rows[i] = old.rows[i]
			continue
		}
		m.rows[i] = make([]float64, i+1)
	}
	return m
}

// branchProduct returns the product of branch[from..to] inclusive, or 1 if
// the range is empty (from > to).
func branchProduct(branch []float64, from, to int) float64 {
	p := 1.0
	for k := from; k <= to; k++ {
		p *= branch[k]
	}
	return p
}

// Fill computes the off-diagonal Bateman/Laplace entries and e^{-rate*t}
// diagonal for rows [rNew, dst.Dim) of dst, given per-rank decay-or-
// destruction rates and the branching-production rate feeding each rank
// from its predecessor. This single routine implements both D(t) (rates =
// decay constants, branch = decay-branching rates) and T(t, f) (rates =
// destruction rates, branch = P[f][k]+L[k]), since both share the
// same triangular Bateman/Laplace structure.
func Fill(dst *Matrix, rNew int, rates, branch []float64, t float64, loopRanks []int) error {
	for i := rNew; i < dst.Dim; i++ {
		diag := safeExp(-rates[i] * t)
		dst.rows[i][i] = diag
		for j := 0; j < i; j++ {
			phi, err := phi(rates[j:i+1], t, hasLoopInRange(loopRanks, j, i))
			if err != nil {
				return err
			}
			v := branchProduct(branch, j+1, i) * phi
			if math.IsInf(v, 0) {
				return &OverflowError{Row: i, Col: j}
			}
			dst.rows[i][j] = v
		}
	}
	return nil
}

func hasLoopInRange(loopRanks []int, j, i int) bool {
	if loopRanks == nil {
		return false
	}
	for k := j; k <= i; k++ {
		if k < len(loopRanks) && loopRanks[k] >= 0 {
			return true
		}
	}
	return false
}

// Multiply composes two transfer matrices of the same dimension, C = A*B,
// refilling only rows [rNew, dim) of dst and preserving the rest via the
// same reuse contract as Fill.
func Multiply(dst, a, b *Matrix, rNew int) error {
	for i := rNew; i < dst.Dim; i++ {
		for j := 0; j <= i; j++ {
			var sum float64
			for k := j; k <= i; k++ {
				sum += a.rows[i][k] * b.rows[k][j]
			}
			if math.IsInf(sum, 0) {
				return &OverflowError{Row: i, Col: j}
			}
			dst.rows[i][j] = sum
		}
	}
	return nil
}

// OverflowError signals a fatal numerical overflow while filling or
// composing a transfer matrix ("numerical overflow of any element is
// a fatal problem-level error").
type OverflowError struct {
	Row, Col int
}

func (e *OverflowError) Error() string {
	return "matrix element overflow at row/col"
}

func safeExp(x float64) float64 {
	if x < -700 {
		return 0
	}
	return math.Exp(x)
}
