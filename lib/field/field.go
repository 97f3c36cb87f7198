/*package field contains the interface that samplers use to read a
distributed vector field and a reference implementation, Slab, which splits a
periodic grid into planes along one axis.

A Slab only stores the planes its worker owns plus a halo of neighboring
planes. Before sampling, every worker calls ExchangeHalo to fill the halo
from the planes' owners.
*/
package field

import (
	"fmt"

	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/mpi"
	"github.com/phil-mansfield/tracers/lib/partition"
)

// Field is a vector field on a periodic 3D grid which may only be partially
// resident on the calling worker.
type Field interface {
	// Dims returns the number of grid cells along each axis.
	Dims() [3]int
	// Components returns the number of components of the field.
	Components() int
	// Owner returns the worker which owns grid coordinate c along the
	// decomposition axis.
	Owner(c int) int
	// Index returns the local index of a grid cell, or false if the cell isn't
	// resident. Every coordinate of cell must be in [0, Dims()).
	Index(cell [3]int) (int, bool)
	// Value returns component comp of the cell at local index idx.
	Value(idx, comp int) float64
}

// HaloExchanger is implemented by Fields which need to communicate before
// their halo cells can be read.
type HaloExchanger interface {
	ExchangeHalo() error
}

// Float is the set of types a Slab can store.
type Float interface {
	~float32 | ~float64
}

// Slab is a Field decomposed into contiguous blocks of planes along one axis.
// It keeps halfWidth planes below its block and halfWidth+1 above it, which
// is exactly the reach of a stencil with that half-width.
type Slab[T Float] struct {
	comm  mpi.Comm
	index *partition.Index
	dims  [3]int
	axis  int
	other [2]int // The other two axes, in increasing order.
	nComp int

	halfWidth    int
	offset, size int // Owned planes.
	lo, hi       int // Halo planes below and above.
	planeSize    int

	data []T

	// Halo exchange plan.
	sendCounts, sendDisp, recvCounts, recvDisp []int
	sendPlanes, recvPlanes                     []int
}

var (
	_ Field         = &Slab[float64]{}
	_ HaloExchanger = &Slab[float32]{}
)

// NewSlab creates this worker's part of a field with nComp components on a
// grid with the given dimensions, split along axis.
func NewSlab[T Float](
	comm mpi.Comm, dims [3]int, axis, nComp, halfWidth int,
) (*Slab[T], error) {
	if axis < 0 || axis > 2 {
		return nil, g_error.Config("The decomposition axis must be 0, 1, "+
			"or 2, but is %d.", axis)
	}
	for k := range dims {
		if dims[k] <= 0 {
			return nil, g_error.Config("Grid dimension %d must be positive, "+
				"but is %d.", k, dims[k])
		}
	}
	if nComp <= 0 {
		return nil, g_error.Config("A field needs at least one component, "+
			"but %d were requested.", nComp)
	} else if halfWidth < 0 {
		return nil, g_error.Config("Stencil half-width must be "+
			"non-negative, but is %d.", halfWidth)
	}

	index, err := partition.New(dims[axis], comm.Size())
	if err != nil { return nil, err }

	s := &Slab[T]{
		comm: comm, index: index, dims: dims, axis: axis,
		nComp: nComp, halfWidth: halfWidth,
	}
	s.other = otherAxes(axis)
	s.planeSize = dims[s.other[0]] * dims[s.other[1]]
	s.offset, s.size = index.Interval(comm.Rank())
	if s.size > 0 {
		s.lo, s.hi = halfWidth, halfWidth + 1
	}
	s.data = make([]T, s.planes()*s.planeSize*nComp)

	s.planHalo()
	return s, nil
}

func otherAxes(axis int) [2]int {
	switch axis {
	case 0: return [2]int{1, 2}
	case 1: return [2]int{0, 2}
	}
	return [2]int{0, 1}
}

// planes returns the number of locally stored planes.
func (s *Slab[T]) planes() int { return s.lo + s.size + s.hi }

func (s *Slab[T]) Dims() [3]int      { return s.dims }
func (s *Slab[T]) Components() int   { return s.nComp }
func (s *Slab[T]) Owner(c int) int   { return s.index.Owner(c) }
func (s *Slab[T]) Axis() int         { return s.axis }
func (s *Slab[T]) HalfWidth() int    { return s.halfWidth }

// Owned returns the first plane owned by this worker and the number of
// planes it owns.
func (s *Slab[T]) Owned() (offset, size int) { return s.offset, s.size }

// plane returns the local plane which stores global plane c, or false if it
// isn't stored. On short axes the halo can wrap around onto the owned block,
// so owned planes are resolved first and always map to their owned slot.
func (s *Slab[T]) plane(c int) (int, bool) {
	if s.size == 0 { return 0, false }
	if c >= s.offset && c < s.offset + s.size {
		return s.lo + c - s.offset, true
	}

	n := s.dims[s.axis]
	if below := pMod(c - (s.offset - s.lo), n); below < s.lo {
		return below, true
	}
	if above := pMod(c - (s.offset + s.size), n); above < s.hi {
		return s.lo + s.size + above, true
	}
	return 0, false
}

// pMod computes the positive modulo x % y.
func pMod(x, y int) int {
	m := x % y
	if m < 0 { m += y }
	return m
}

func (s *Slab[T]) Index(cell [3]int) (int, bool) {
	e, ok := s.plane(cell[s.axis])
	if !ok { return 0, false }
	i1, i2 := cell[s.other[0]], cell[s.other[1]]
	return e*s.planeSize + i1*s.dims[s.other[1]] + i2, true
}

func (s *Slab[T]) Value(idx, comp int) float64 {
	return float64(s.data[idx*s.nComp + comp])
}

// Set sets the value of an owned cell.
func (s *Slab[T]) Set(cell [3]int, comp int, v float64) error {
	c := cell[s.axis]
	if c < s.offset || c >= s.offset + s.size {
		return fmt.Errorf("Plane %d is not owned by worker %d, which owns "+
			"[%d, %d).", c, s.comm.Rank(), s.offset, s.offset + s.size)
	}
	idx, _ := s.Index(cell)
	s.data[idx*s.nComp + comp] = T(v)
	return nil
}

// Fill sets every owned cell to the values that fn writes to out.
func (s *Slab[T]) Fill(fn func(cell [3]int, out []float64)) {
	out := make([]float64, s.nComp)
	var cell [3]int
	a1, a2 := s.other[0], s.other[1]
	for c := s.offset; c < s.offset + s.size; c++ {
		cell[s.axis] = c
		for i1 := 0; i1 < s.dims[a1]; i1++ {
			cell[a1] = i1
			for i2 := 0; i2 < s.dims[a2]; i2++ {
				cell[a2] = i2
				fn(cell, out)
				idx, _ := s.Index(cell)
				for k := range out {
					s.data[idx*s.nComp + k] = T(out[k])
				}
			}
		}
	}
}

// FillVelocity fills the owned cells by evaluating v at the corner of each
// cell in a box of the given size. The Slab must have three components.
func (s *Slab[T]) FillVelocity(box [3]float64, v Velocity) error {
	if s.nComp != 3 {
		return g_error.Config("Velocity fields need 3 components, but the "+
			"field has %d.", s.nComp)
	}
	var dx [3]float64
	for k := range dx { dx[k] = box[k] / float64(s.dims[k]) }

	s.Fill(func(cell [3]int, out []float64) {
		x := [3]float64{
			float64(cell[0])*dx[0], float64(cell[1])*dx[1],
			float64(cell[2])*dx[2],
		}
		v(x, out)
	})
	return nil
}

// planHalo works out which planes this worker sends to and receives from
// every other worker. Each worker runs the same loops over the same
// PartitionIndex, so senders and receivers agree on the order of planes
// without exchanging it.
func (s *Slab[T]) planHalo() {
	nw, me := s.comm.Size(), s.comm.Rank()
	width := s.planeSize * s.nComp

	s.sendCounts, s.recvCounts = make([]int, nw), make([]int, nw)
	s.sendPlanes, s.recvPlanes = []int{}, []int{}

	// Receive: my halo planes, grouped by owner.
	recvBy := make([][]int, nw)
	for _, e := range haloPlanes(s.offset, s.size, s.lo, s.hi) {
		c := s.global(e, s.offset, s.lo)
		recvBy[s.index.Owner(c)] = append(recvBy[s.index.Owner(c)], e)
	}
	for src := range recvBy {
		s.recvCounts[src] = len(recvBy[src]) * width
		s.recvPlanes = append(s.recvPlanes, recvBy[src]...)
	}

	// Send: every owned plane in each other worker's halo, in the order that
	// worker will unpack them.
	for dst := 0; dst < nw; dst++ {
		off, size := s.index.Interval(dst)
		lo, hi := 0, 0
		if size > 0 { lo, hi = s.halfWidth, s.halfWidth + 1 }
		for _, e := range haloPlanes(off, size, lo, hi) {
			c := s.global(e, off, lo)
			if s.index.Owner(c) == me {
				s.sendPlanes = append(s.sendPlanes, s.lo + c - s.offset)
				s.sendCounts[dst] += width
			}
		}
	}

	s.sendDisp, _ = mpi.Displacements(s.sendCounts)
	s.recvDisp, _ = mpi.Displacements(s.recvCounts)
}

// haloPlanes returns the local indices of the halo planes of a block.
func haloPlanes(offset, size, lo, hi int) []int {
	out := make([]int, 0, lo + hi)
	for e := 0; e < lo; e++ { out = append(out, e) }
	for e := lo + size; e < lo + size + hi; e++ { out = append(out, e) }
	return out
}

// global returns the global plane stored at local plane e of a block.
func (s *Slab[T]) global(e, offset, lo int) int {
	return pMod(offset - lo + e, s.dims[s.axis])
}

// ExchangeHalo fills the halo planes from their owners. It is collective.
func (s *Slab[T]) ExchangeHalo() error {
	width := s.planeSize * s.nComp

	send := make([]float64, len(s.sendPlanes)*width)
	for i, e := range s.sendPlanes {
		src := s.data[e*width: (e+1)*width]
		dst := send[i*width: (i+1)*width]
		for k := range src { dst[k] = float64(src[k]) }
	}

	recv := make([]float64, len(s.recvPlanes)*width)
	err := s.comm.AlltoallvFloat64(send, s.sendCounts, s.sendDisp,
		recv, s.recvCounts, s.recvDisp)
	if err != nil { return err }

	for i, e := range s.recvPlanes {
		src := recv[i*width: (i+1)*width]
		dst := s.data[e*width: (e+1)*width]
		for k := range src { dst[k] = T(src[k]) }
	}
	return nil
}
