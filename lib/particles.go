package lib

/* This file builds the particles, field, and checkpoint layout of a run from
its Args. */

import (
	"log/slog"

	"github.com/phil-mansfield/tracers/lib/checkpoint"
	"github.com/phil-mansfield/tracers/lib/field"
	"github.com/phil-mansfield/tracers/lib/interp"
	"github.com/phil-mansfield/tracers/lib/mpi"
	"github.com/phil-mansfield/tracers/lib/particles"
	"github.com/phil-mansfield/tracers/lib/partition"
	"github.com/phil-mansfield/tracers/lib/tracer"
)

// VelocityDataset returns the name of the dataset holding the velocity
// sampled at each particle.
func VelocityDataset(name string) string { return name + "/velocity" }

// TracerParams returns the tracer.Params described by args.
func TracerParams(args *Args, log *slog.Logger) tracer.Params {
	return tracer.Params{
		NParticles: args.Particles,
		NComponents: args.Components,
		MaxOrder: args.IntegrationOrder,
		Dt: args.Dt,
		Box: args.Box,
		TrajectoryStride: args.TrajectoryStride,
		Name: args.Name,
		Logger: log,
	}
}

// Datasets returns every dataset a run writes to.
func Datasets(args *Args) []checkpoint.Dataset {
	ds := tracer.Datasets(TracerParams(args, nil))
	return append(ds, checkpoint.Dataset{
		Name: VelocityDataset(args.Name),
		SlabShape: []int64{ args.Particles, 3 },
	})
}

// InitialState returns the global state array at iteration 0. Every worker
// computes the same array.
func InitialState(args *Args) ([]float64, error) {
	switch args.InitialCondition {
	case UniformIC:
		return particles.Uniform(args.Particles, args.Components,
			args.Box, args.Seed), nil
	default:
		return particles.Lattice(args.Particles, args.Components, args.Box)
	}
}

// Velocity returns the analytic velocity field selected by args.
func Velocity(args *Args) field.Velocity {
	switch args.Field {
	case ABCField:
		a := args.Amplitude
		return field.ABC(a, a, a)
	case TaylorGreenField:
		return field.TaylorGreen(args.Amplitude)
	default:
		return field.UniformVelocity(args.Velocity)
	}
}

// NewField creates this worker's part of the velocity field in the requested
// precision and fills it.
func NewField(comm mpi.Comm, args *Args) (field.Field, error) {
	v := Velocity(args)
	if args.Precision == Single {
		f, err := field.NewSlab[float32](comm, args.Dims, args.Axis, 3,
			args.HalfWidth)
		if err != nil { return nil, err }
		return f, f.FillVelocity(args.Box, v)
	}
	f, err := field.NewSlab[float64](comm, args.Dims, args.Axis, 3,
		args.HalfWidth)
	if err != nil { return nil, err }
	return f, f.FillVelocity(args.Box, v)
}

// NewSampler creates the field and a sampler for it with the configured
// basis.
func NewSampler(comm mpi.Comm, args *Args) (*interp.Sampler, error) {
	f, err := NewField(comm, args)
	if err != nil { return nil, err }

	var basis interp.Basis
	switch args.Basis {
	case SplineBasis:
		basis, err = interp.NewSpline(args.HalfWidth)
	default:
		basis, err = interp.NewLagrange(args.HalfWidth)
	}
	if err != nil { return nil, err }
	return interp.NewSampler(f, basis, args.Box, args.Axis)
}

// NewTracers creates this worker's Tracers, advected by the sampled field.
// The particles aren't loaded.
func NewTracers(
	comm mpi.Comm, args *Args, s *interp.Sampler, log *slog.Logger,
) (*tracer.Tracers, error) {
	idx, err := partition.New(args.Dims[args.Axis], comm.Size())
	if err != nil { return nil, err }
	sp, err := partition.NewSpatial(idx, args.Axis, args.Box[args.Axis])
	if err != nil { return nil, err }
	return tracer.New(comm, sp, tracer.NewVelocityRHS(s),
		TracerParams(args, log))
}
