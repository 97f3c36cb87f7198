/*package partition splits the grid cells along the decomposition axis into
contiguous intervals, one per worker.

Every worker evaluates the same formulas from the same (n, p), so workers
agree on who owns which cell without talking to one another.
*/
package partition

import (
	"fmt"
	"math"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

// Index maps n cells onto p workers. When n > p every worker gets n/p cells
// and the last n%p workers get one extra. When n <= p the first n workers get
// one cell each and the rest get an empty interval starting at n.
type Index struct {
	n, p int
	q, rem int // n/p and n%p, only used when n > p
	split int // first cell owned by a worker with q+1 cells
}

// New returns the Index of n cells over p workers.
func New(n, p int) (*Index, error) {
	if p <= 0 {
		return nil, g_error.Config("The number of workers must be "+
			"positive, but is %d.", p)
	} else if n < 0 {
		return nil, g_error.Config("The number of grid cells must be "+
			"non-negative, but is %d.", n)
	}

	idx := &Index{n: n, p: p}
	if n > p {
		idx.q, idx.rem = n / p, n % p
		idx.split = (p - idx.rem) * idx.q
	}
	return idx, nil
}

// Cells returns the number of cells.
func (idx *Index) Cells() int { return idx.n }

// Workers returns the number of workers.
func (idx *Index) Workers() int { return idx.p }

// Interval returns the first cell owned by worker r and the number of cells
// it owns.
func (idx *Index) Interval(r int) (offset, size int) {
	if r < 0 || r >= idx.p {
		panic(fmt.Sprintf("Worker %d is not in [0, %d).", r, idx.p))
	}

	if idx.n <= idx.p {
		if r < idx.n { return r, 1 }
		return idx.n, 0
	}

	small := idx.p - idx.rem
	if r < small { return r*idx.q, idx.q }
	return idx.split + (r - small)*(idx.q + 1), idx.q + 1
}

// Owner returns the worker whose interval contains cell c.
func (idx *Index) Owner(c int) int {
	if c < 0 || c >= idx.n {
		panic(fmt.Sprintf("Cell %d is not in [0, %d).", c, idx.n))
	}

	if idx.n <= idx.p { return c }
	if c < idx.split { return c / idx.q }
	return (idx.p - idx.rem) + (c - idx.split) / (idx.q + 1)
}

// Spatial maps coordinates along one axis of a periodic box onto the cells of
// an Index.
type Spatial struct {
	*Index
	Axis  int
	Width float64
	dx    float64
}

// NewSpatial returns the Spatial mapping for a box of the given width along
// the decomposition axis.
func NewSpatial(idx *Index, axis int, width float64) (*Spatial, error) {
	if axis < 0 || axis > 2 {
		return nil, g_error.Config("The decomposition axis must be 0, 1, "+
			"or 2, but is %d.", axis)
	} else if !(width > 0) || math.IsInf(width, 0) {
		return nil, g_error.Config("The box width along axis %d must be "+
			"positive and finite, but is %g.", axis, width)
	} else if idx.n == 0 {
		return nil, g_error.Config("A box with zero grid cells along "+
			"axis %d can't hold particles.", axis)
	}
	return &Spatial{idx, axis, width, width / float64(idx.n)}, nil
}

// Dx returns the width of a single cell.
func (s *Spatial) Dx() float64 { return s.dx }

// Cell returns the cell containing x, wrapped into [0, n).
func (s *Spatial) Cell(x float64) int {
	return pMod(int(math.Floor(x / s.dx)), s.n)
}

// Owner returns the worker that owns a particle at coordinate x.
func (s *Spatial) Owner(x float64) int {
	return s.Index.Owner(s.Cell(x))
}

// OwnerOf returns the worker which owns the particle whose position is the
// first three values of state.
func (s *Spatial) OwnerOf(state []float64) int {
	return s.Owner(state[s.Axis])
}

// Limits returns the range of coordinates owned by worker r.
func (s *Spatial) Limits(r int) (low, high float64) {
	offset, size := s.Interval(r)
	return float64(offset)*s.dx, float64(offset + size)*s.dx
}

// pMod computes the positive modulo x % y.
func pMod(x, y int) int {
	m := x % y
	if m < 0 {
		m += y
	}
	return m
}
