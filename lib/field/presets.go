package field

import (
	"math"
)

// Velocity is an analytic velocity field. It writes the velocity at x to
// out[0:3].
type Velocity func(x [3]float64, out []float64)

// UniformVelocity is the same everywhere.
func UniformVelocity(u [3]float64) Velocity {
	return func(x [3]float64, out []float64) {
		out[0], out[1], out[2] = u[0], u[1], u[2]
	}
}

// ABC returns an Arnold-Beltrami-Childress flow. It is periodic on a box of
// width 2 pi and is an exact steady solution of the Euler equations.
func ABC(a, b, c float64) Velocity {
	return func(x [3]float64, out []float64) {
		sx, cx := math.Sincos(x[0])
		sy, cy := math.Sincos(x[1])
		sz, cz := math.Sincos(x[2])
		out[0] = a*sz + c*cy
		out[1] = b*sx + a*cz
		out[2] = c*sy + b*cx
	}
}

// TaylorGreen returns the initial Taylor-Green vortex with the given
// amplitude, periodic on a box of width 2 pi.
func TaylorGreen(amp float64) Velocity {
	return func(x [3]float64, out []float64) {
		sx, cx := math.Sincos(x[0])
		sy, cy := math.Sincos(x[1])
		cz := math.Cos(x[2])
		out[0] = amp * sx * cy * cz
		out[1] = -amp * cx * sy * cz
		out[2] = 0
	}
}
