/*package interp evaluates fields stored on a grid at arbitrary positions.

A Basis supplies one-dimensional interpolation weights for a stencil of
2*HalfWidth()+2 grid points, running from HalfWidth() points below the cell
containing a position to HalfWidth()+1 points above it. A Sampler combines
weights along each axis into a tensor-product stencil and reads the values it
needs from a field.Field.
*/
package interp

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

// Basis is a one-dimensional interpolation kernel.
type Basis interface {
	// HalfWidth returns h. The stencil covers grid points -h .. h+1 relative
	// to the cell containing the position.
	HalfWidth() int
	// Weights writes the 2h+2 weights of the deriv-th derivative of the
	// interpolant, in units of the grid spacing, to out. frac is the position
	// inside the cell, in [0, 1).
	Weights(deriv int, frac float64, out []float64) error
}

// Lagrange is the Lagrange interpolating polynomial through the 2h+2 stencil
// points. It reproduces grid values exactly and is exact for polynomials of
// degree 2h+1.
type Lagrange struct {
	h int
	// coeffs[d][j] holds the polynomial coefficients, lowest order first, of
	// the d-th derivative of the cardinal polynomial for stencil point j.
	coeffs [][][]float64
}

var _ Basis = &Lagrange{}

// NewLagrange returns the Lagrange basis with half-width h. h = 0 is linear
// interpolation.
func NewLagrange(h int) (*Lagrange, error) {
	if h < 0 {
		return nil, g_error.Config("Interpolation half-width must be "+
			"non-negative, but is %d.", h)
	}

	n := 2*h + 2
	nodes := make([]float64, n)
	floats.Span(nodes, float64(-h), float64(h + 1))

	l := &Lagrange{ h: h, coeffs: make([][][]float64, n) }
	l.coeffs[0] = make([][]float64, n)
	for j := range nodes {
		l.coeffs[0][j] = cardinal(nodes, j)
	}
	for d := 1; d < n; d++ {
		l.coeffs[d] = make([][]float64, n)
		for j := range nodes {
			l.coeffs[d][j] = differentiate(l.coeffs[d-1][j])
		}
	}
	return l, nil
}

// cardinal returns the coefficients of the polynomial which is one at
// nodes[j] and zero at every other node.
func cardinal(nodes []float64, j int) []float64 {
	p := []float64{ 1 }
	denom := 1.0
	for m := range nodes {
		if m == j { continue }
		// p *= (x - nodes[m])
		next := make([]float64, len(p) + 1)
		for i := range p {
			next[i+1] += p[i]
			next[i] -= p[i] * nodes[m]
		}
		p = next
		denom *= nodes[j] - nodes[m]
	}
	floats.Scale(1/denom, p)
	return p
}

func differentiate(p []float64) []float64 {
	if len(p) <= 1 { return []float64{ 0 } }
	out := make([]float64, len(p) - 1)
	for i := range out {
		out[i] = p[i+1] * float64(i + 1)
	}
	return out
}

func (l *Lagrange) HalfWidth() int { return l.h }

// MaxDerivative returns the highest derivative with non-zero weights.
func (l *Lagrange) MaxDerivative() int { return 2*l.h + 1 }

func (l *Lagrange) Weights(deriv int, frac float64, out []float64) error {
	if deriv < 0 || deriv >= len(l.coeffs) {
		return g_error.Config("Derivative order %d is not supported by a "+
			"Lagrange basis with half-width %d.", deriv, l.h)
	} else if len(out) != 2*l.h + 2 {
		panic(fmt.Sprintf("Weights needs %d outputs, got %d.",
			2*l.h + 2, len(out)))
	}

	for j, p := range l.coeffs[deriv] {
		// Horner's method.
		w := 0.0
		for i := len(p) - 1; i >= 0; i-- {
			w = w*frac + p[i]
		}
		out[j] = w
	}
	return nil
}

// Spline is a piecewise cubic Hermite interpolant. Inside each cell it matches
// the two grid values at the cell's corners and derivatives estimated there by
// a centered finite difference over 2h+1 points, so the interpolant and its
// first derivative are continuous across cells. h = 1 is Catmull-Rom.
type Spline struct {
	h int
	// fd[j] is the finite difference weight of point j-h.
	fd []float64
	// herm[d] holds the d-th derivatives of the four Hermite polynomials:
	// value at 0, value at 1, slope at 0, slope at 1.
	herm [][4][]float64
}

var _ Basis = &Spline{}

// NewSpline returns the spline basis with half-width h >= 1.
func NewSpline(h int) (*Spline, error) {
	if h < 1 {
		return nil, g_error.Config("Spline interpolation needs a half-width "+
			"of at least 1, but got %d.", h)
	}

	nodes := make([]float64, 2*h + 1)
	floats.Span(nodes, float64(-h), float64(h))
	s := &Spline{ h: h, fd: make([]float64, len(nodes)) }
	for j := range nodes {
		// The slope of the cardinal polynomial at 0 is its linear term.
		d := differentiate(cardinal(nodes, j))
		s.fd[j] = d[0]
	}

	s.herm = make([][4][]float64, 4)
	s.herm[0] = [4][]float64{
		{ 1, 0, -3, 2 }, { 0, 0, 3, -2 }, { 0, 1, -2, 1 }, { 0, 0, -1, 1 },
	}
	for d := 1; d < len(s.herm); d++ {
		for k := range s.herm[d] {
			s.herm[d][k] = differentiate(s.herm[d-1][k])
		}
	}
	return s, nil
}

func (s *Spline) HalfWidth() int { return s.h }

// MaxDerivative returns the highest derivative with non-zero weights.
func (s *Spline) MaxDerivative() int { return 3 }

func (s *Spline) Weights(deriv int, frac float64, out []float64) error {
	if deriv < 0 || deriv >= len(s.herm) {
		return g_error.Config("Derivative order %d is not supported by a "+
			"cubic spline basis.", deriv)
	} else if len(out) != 2*s.h + 2 {
		panic(fmt.Sprintf("Weights needs %d outputs, got %d.",
			2*s.h + 2, len(out)))
	}

	var hv [4]float64
	for k, p := range s.herm[deriv] {
		for i := len(p) - 1; i >= 0; i-- {
			hv[k] = hv[k]*frac + p[i]
		}
	}

	for j := range out { out[j] = 0 }
	// Point 0 of the cell sits at index h, point 1 at h+1.
	out[s.h] += hv[0]
	out[s.h+1] += hv[1]
	for j, c := range s.fd {
		out[j] += hv[2] * c
		out[j+1] += hv[3] * c
	}
	return nil
}
