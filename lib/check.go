package lib

/* check.go contains the core functions of the "check" mode. */

import (
	"math"
	"runtime"

	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/tracer"
)

// Check validates args and returns every problem it finds rather than
// stopping at the first one. In MPIMode the worker count comes from the MPI
// launcher, so Workers isn't checked. All returned errors are configuration
// errors.
func Check(mode RunMode, args *Args) []error {
	errs := []error{}
	fail := func(format string, a ...interface{}) {
		errs = append(errs, g_error.Config(format, a...))
	}

	if mode == LocalMode && args.Workers < 1 {
		fail("Workers must be positive, but is %d.", args.Workers)
	}

	if args.Axis < 0 || args.Axis > 2 {
		fail("Axis must be 0, 1, or 2, but is %d.", args.Axis)
	}
	names := []string{ "X", "Y", "Z" }
	stencil := 2*args.HalfWidth + 2
	for k := 0; k < 3; k++ {
		if args.Dims[k] <= 0 {
			fail("N%s must be positive, but is %d.", names[k], args.Dims[k])
		} else if args.HalfWidth >= 0 && args.Dims[k] < stencil {
			fail("N%s is %d, but an interpolation stencil with HalfWidth = "+
				"%d is %d cells wide.", names[k], args.Dims[k],
				args.HalfWidth, stencil)
		}
		if !(args.Box[k] > 0) || math.IsInf(args.Box[k], 0) {
			fail("Box%s must be positive and finite, but is %g.",
				names[k], args.Box[k])
		}
	}
	if args.HalfWidth < 0 {
		fail("HalfWidth must be non-negative, but is %d.", args.HalfWidth)
	} else if args.Basis == SplineBasis && args.HalfWidth < 1 {
		fail("Spline interpolation needs HalfWidth >= 1, but HalfWidth = 0.")
	}

	if args.Particles <= 0 {
		fail("Particles must be positive, but is %d.", args.Particles)
	} else if args.InitialCondition == LatticeIC {
		side := int64(math.Round(math.Cbrt(float64(args.Particles))))
		if side*side*side != args.Particles {
			fail("Lattice initial conditions need a perfect cube of "+
				"particles, but Particles = %d.", args.Particles)
		}
	}
	if args.Components < 3 {
		fail("Components must be at least 3, but is %d.", args.Components)
	}

	if args.IntegrationOrder < 1 ||
		args.IntegrationOrder > tracer.MaxSupportedOrder {
		fail("IntegrationOrder must be in [1, %d], but is %d.",
			tracer.MaxSupportedOrder, args.IntegrationOrder)
	}
	if !(args.Dt > 0) || math.IsInf(args.Dt, 0) {
		fail("Dt must be positive and finite, but is %g.", args.Dt)
	}
	if args.Iterations < 0 {
		fail("Iterations must be non-negative, but is %d.", args.Iterations)
	}

	if args.TrajectoryStride < 1 {
		fail("TrajectoryStride must be positive, but is %d.",
			args.TrajectoryStride)
	} else if args.Restart < 0 || args.Restart % args.TrajectoryStride != 0 {
		fail("Restart must be a non-negative multiple of TrajectoryStride "+
			"= %d, but is %d.", args.TrajectoryStride, args.Restart)
	}

	if args.CheckpointDir == "" {
		fail("CheckpointDir must be set.")
	}
	if args.Name == "" {
		fail("Name must not be empty.")
	}

	if args.Threads < -1 {
		fail("Threads must be positive, 0, or -1, but is %d.", args.Threads)
	} else if args.Threads > runtime.NumCPU() {
		fail("%d threads requested, but your system only has %d cores.",
			args.Threads, runtime.NumCPU())
	}
	if args.LogFormat != "text" && args.LogFormat != "json" {
		fail("LogFormat must be 'text' or 'json', but is '%s'.",
			args.LogFormat)
	}

	return errs
}
