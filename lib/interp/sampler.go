package interp

import (
	"fmt"
	"math"

	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/field"
)

// Run is a contiguous range of grid coordinates, [Start, Start+Len).
type Run struct {
	Start, Len int
}

// StencilRuns returns the coordinates covered by a stencil of half-width h
// around cell on a periodic axis of n cells, as at most two runs in stencil
// order. The second run exists only if the stencil wraps past 0 or n. n must
// be at least 2h+2.
func StencilRuns(cell, h, n int) []Run {
	length := 2*h + 2
	start := pMod(cell - h, n)
	if start + length <= n {
		return []Run{ {start, length} }
	}
	return []Run{ {start, n - start}, {0, length - (n - start)} }
}

// Sampler evaluates a field at arbitrary positions inside a periodic box. It
// keeps scratch buffers, so each worker needs its own.
type Sampler struct {
	field field.Field
	basis Basis
	axis  int

	dims  [3]int
	box   [3]float64
	dx    [3]float64
	deriv [3]int

	nComp int
	w     [3][]float64 // weights along each axis
	idx   [3][]int     // grid coordinates along each axis
}

// NewSampler creates a Sampler for f with the given basis. box gives the
// width of the box along each axis and axis is the axis along which f is
// decomposed across workers.
func NewSampler(
	f field.Field, basis Basis, box [3]float64, axis int,
) (*Sampler, error) {
	if axis < 0 || axis > 2 {
		return nil, g_error.Config("The decomposition axis must be 0, 1, "+
			"or 2, but is %d.", axis)
	}

	h := basis.HalfWidth()
	s := &Sampler{
		field: f, basis: basis, axis: axis,
		dims: f.Dims(), box: box, nComp: f.Components(),
	}

	for k := 0; k < 3; k++ {
		if s.dims[k] < 2*h + 2 {
			return nil, g_error.Config("Axis %d has %d grid cells, which is "+
				"narrower than the %d-point interpolation stencil.",
				k, s.dims[k], 2*h + 2)
		} else if !(box[k] > 0) || math.IsInf(box[k], 0) {
			return nil, g_error.Config("Box width %g along axis %d must be "+
				"positive and finite.", box[k], k)
		}
		s.dx[k] = box[k] / float64(s.dims[k])
		s.w[k] = make([]float64, 2*h + 2)
		s.idx[k] = make([]int, 2*h + 2)
	}

	return s, nil
}

// Components returns the number of values written per sample.
func (s *Sampler) Components() int { return s.nComp }

// SetDerivative makes the Sampler return the given partial derivative of the
// field, e.g. {1, 0, 0} for d/dx. The default is {0, 0, 0}.
func (s *Sampler) SetDerivative(deriv [3]int) error {
	tmp := make([]float64, len(s.w[0]))
	for k := range deriv {
		if err := s.basis.Weights(deriv[k], 0, tmp); err != nil {
			return err
		}
	}
	s.deriv = deriv
	return nil
}

// Sample writes the value of the field at pos to out. pos must have at least
// three elements and out must have at least Components() elements. It returns
// an invariant error if the stencil needs a cell which isn't resident on this
// worker.
func (s *Sampler) Sample(pos, out []float64) error {
	h := s.basis.HalfWidth()
	n := 2*h + 2

	for k := 0; k < 3; k++ {
		xg := pos[k] / s.dx[k]
		fl := math.Floor(xg)
		cell := pMod(int(fl), s.dims[k])

		if err := s.basis.Weights(s.deriv[k], xg - fl, s.w[k]); err != nil {
			return err
		}
		if s.deriv[k] > 0 {
			scale := math.Pow(s.dx[k], -float64(s.deriv[k]))
			for j := range s.w[k] { s.w[k][j] *= scale }
		}

		if k == s.axis {
			j := 0
			for _, run := range StencilRuns(cell, h, s.dims[k]) {
				for i := run.Start; i < run.Start + run.Len; i++ {
					s.idx[k][j] = i
					j++
				}
			}
		} else {
			nk := s.dims[k]
			for j := 0; j < n; j++ {
				s.idx[k][j] = (cell - h + j + nk) % nk
			}
		}
	}

	for c := 0; c < s.nComp; c++ { out[c] = 0 }

	var cell [3]int
	for i := 0; i < n; i++ {
		cell[0] = s.idx[0][i]
		for j := 0; j < n; j++ {
			cell[1] = s.idx[1][j]
			wxy := s.w[0][i] * s.w[1][j]
			for k := 0; k < n; k++ {
				cell[2] = s.idx[2][k]
				idx, ok := s.field.Index(cell)
				if !ok {
					return g_error.Invariant("The interpolation stencil at "+
						"(%g, %g, %g) needs cell %d, which is not resident "+
						"on this worker.", pos[0], pos[1], pos[2], cell)
				}
				w := wxy * s.w[2][k]
				for c := 0; c < s.nComp; c++ {
					out[c] += w * s.field.Value(idx, c)
				}
			}
		}
	}

	return nil
}

// SampleAll samples the field at every position in state, which holds stride
// values per particle with the position first. The samples are written to out
// with Components() values per particle. If the field needs a halo exchange,
// it is done once up front, so SampleAll is collective for such fields.
func (s *Sampler) SampleAll(state []float64, stride int, out []float64) error {
	if stride < 3 {
		panic(fmt.Sprintf("State stride %d is smaller than a position.",
			stride))
	}
	np := len(state) / stride
	if len(out) < np*s.nComp {
		panic(fmt.Sprintf("%d particles need %d output values, but out has "+
			"length %d.", np, np*s.nComp, len(out)))
	}

	if ex, ok := s.field.(field.HaloExchanger); ok {
		if err := ex.ExchangeHalo(); err != nil { return err }
	}

	for i := 0; i < np; i++ {
		err := s.Sample(state[i*stride: i*stride + 3],
			out[i*s.nComp: (i+1)*s.nComp])
		if err != nil { return err }
	}
	return nil
}

// pMod computes the positive modulo x % y.
func pMod(x, y int) int {
	m := x % y
	if m < 0 {
		m += y
	}
	return m
}
