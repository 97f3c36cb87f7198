package tracer

import (
	"fmt"

	"github.com/phil-mansfield/tracers/lib/interp"
)

// RHS evaluates the time derivative of particle states. Implementations may
// be collective, so Eval is called exactly once per step on every worker,
// even by workers with no particles.
type RHS interface {
	// Eval writes the derivative of each nc-component state in state to the
	// matching row of out.
	Eval(state []float64, nc int, out []float64) error
}

// RHSFunc lets an ordinary function be used as an RHS.
type RHSFunc func(state []float64, nc int, out []float64) error

func (f RHSFunc) Eval(state []float64, nc int, out []float64) error {
	return f(state, nc, out)
}

// VelocityRHS advects particles with the vector field read by a Sampler. The
// first three components of the derivative are the sampled velocity and the
// rest are zero.
type VelocityRHS struct {
	Sampler *interp.Sampler
	buf     []float64
}

// NewVelocityRHS returns a VelocityRHS around s, which must sample at least
// three components.
func NewVelocityRHS(s *interp.Sampler) *VelocityRHS {
	if s.Components() < 3 {
		panic(fmt.Sprintf("A velocity field needs three components, but the "+
			"sampler gives %d.", s.Components()))
	}
	return &VelocityRHS{ Sampler: s }
}

func (v *VelocityRHS) Eval(state []float64, nc int, out []float64) error {
	np, ns := len(state) / nc, v.Sampler.Components()
	if cap(v.buf) < np*ns {
		v.buf = make([]float64, np*ns)
	}
	v.buf = v.buf[:np*ns]

	if err := v.Sampler.SampleAll(state, nc, v.buf); err != nil {
		return err
	}

	for i := 0; i < np; i++ {
		row := out[i*nc: (i+1)*nc]
		copy(row[:3], v.buf[i*ns: i*ns + 3])
		for c := 3; c < nc; c++ { row[c] = 0 }
	}
	return nil
}
