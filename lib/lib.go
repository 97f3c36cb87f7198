/*package lib contains the configuration and run modes of tracers. The
functions in this particular package mainly turn a config file into the
objects that lib/'s subpackages need and drive them. Almost all of the heavy
lifting is done by lib/'s subpackages.
*/
package lib

import (
	"fmt"
	"io"
)

// Version is the version of the software.
const Version = "0.1.0"

// ExampleConfig is a complete config file which documents every variable.
const ExampleConfig = `[Tracers]
# Number of in-process workers. Ignored by the MPI build, which uses the
# number of MPI ranks.
Workers = 2

# Grid dimensions and box widths. Widths default to 2 pi.
NX = 32
NY = 32
NZ = 32
# BoxX = 6.283185307179586
# Axis along which the field and particles are split between workers.
Axis = 2

# Particle count and state components per particle. The first three
# components are the position.
Particles = 4096
Components = 3

# Adams-Bashforth order, 1 to 6, and interpolation stencil half-width. The
# stencil is 2*HalfWidth+2 cells wide.
IntegrationOrder = 4
# lagrange or spline. spline is smooth across cells and needs HalfWidth >= 1.
Basis = lagrange
HalfWidth = 1
Dt = 0.01
Iterations = 1000
# Iterations between checkpoints.
TrajectoryStride = 10

CheckpointDir = checkpoint
Name = tracers0
# Iteration to restart from. Must have been checkpointed.
Restart = 0
# Iterations which also store RHS history so that restarts keep their
# integration order. Iterations that aren't checkpointed are ignored.
RHSOutputs = 0..1000 - 500

# lattice or uniform.
InitialCondition = lattice
Seed = 0

# uniform (UX, UY, UZ), abc, or taylor-green (Amplitude).
Field = abc
Amplitude = 1
# single or double.
Precision = double

StatsFile = stats.csv
# 0 leaves the Go default, -1 uses every core.
Threads = 0
# debug, info, warn, or error.
LogLevel = info
# text or json.
LogFormat = text
`

// PrintHelp writes usage information to w.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `tracers %s

Usage:
    tracers <mode> <config file> [--<Arg1> <Value1>] [--<Arg2> <Value2>] ...

Modes:
    help   Print this message.
    check  Check a config file for errors and report all of them.
    init   Create the checkpoint store and write iteration 0.
    run    Restart from iteration Restart and take Iterations steps.

Any config variable can be overwritten on the command line, e.g.
    tracers run tracers.config --Restart 100 --Iterations 50

Example config file:

%s`, Version, ExampleConfig)
}
