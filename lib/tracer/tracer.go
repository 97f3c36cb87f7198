/*package tracer advances a distributed population of tracer particles with
Adams-Bashforth time stepping and reads and writes their checkpoints.

Each worker owns the particles inside its slab of the box. A step evaluates
the RHS at every owned particle, advances it, rolls its RHS history, wraps it
back into the box, and then hands it to whichever worker owns its new
position. The history travels with the particle, so a particle that crosses a
worker boundary keeps integrating at the same order.
*/
package tracer

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/mpi"
	"github.com/phil-mansfield/tracers/lib/particles"
	"github.com/phil-mansfield/tracers/lib/partition"
)

// MaxSupportedOrder is the highest Adams-Bashforth order.
const MaxSupportedOrder = 6

// abCoeffs[k-1] are the order-k Adams-Bashforth coefficients. Coefficient j
// multiplies the RHS from j steps ago.
var abCoeffs = [MaxSupportedOrder][]float64{
	{ 1 },
	{ 3.0/2, -1.0/2 },
	{ 23.0/12, -16.0/12, 5.0/12 },
	{ 55.0/24, -59.0/24, 37.0/24, -9.0/24 },
	{ 1901.0/720, -2774.0/720, 2616.0/720, -1274.0/720, 251.0/720 },
	{
		4277.0/1440, -7923.0/1440, 9982.0/1440,
		-7298.0/1440, 2877.0/1440, -475.0/1440,
	},
}

// Params configures a Tracers.
type Params struct {
	NParticles  int64
	NComponents int
	// MaxOrder is the highest integration order used and the number of
	// past RHS samples kept per particle.
	MaxOrder int
	Dt       float64
	Box      [3]float64
	// TrajectoryStride is the number of iterations between checkpoint
	// slabs. Slab i holds iteration i*TrajectoryStride.
	TrajectoryStride int
	// Name prefixes the checkpoint datasets.
	Name   string
	Logger *slog.Logger
}

// Check returns an error if p can't be used to build a Tracers.
func (p *Params) Check() error {
	switch {
	case p.MaxOrder < 1 || p.MaxOrder > MaxSupportedOrder:
		return g_error.Config("Integration order must be in [1, %d], but "+
			"is %d.", MaxSupportedOrder, p.MaxOrder)
	case p.NParticles <= 0:
		return g_error.Config("Particle count must be positive, but is %d.",
			p.NParticles)
	case p.NComponents < 3:
		return g_error.Config("Particles need at least 3 state components, "+
			"but %d were requested.", p.NComponents)
	case !(p.Dt > 0) || math.IsInf(p.Dt, 0):
		return g_error.Config("Time step must be positive and finite, but "+
			"is %g.", p.Dt)
	case p.TrajectoryStride < 1:
		return g_error.Config("Trajectory stride must be positive, but is "+
			"%d.", p.TrajectoryStride)
	case p.Name == "":
		return g_error.Config("Tracers need a name.")
	}
	for k := range p.Box {
		if !(p.Box[k] > 0) || math.IsInf(p.Box[k], 0) {
			return g_error.Config("Box width %g along axis %d must be "+
				"positive and finite.", p.Box[k], k)
		}
	}
	return nil
}

// Tracers is one worker's view of the particle population.
type Tracers struct {
	comm    mpi.Comm
	spatial *partition.Spatial
	rhs     RHS
	p       Params
	log     *slog.Logger

	set       *particles.Set
	iteration int

	rhsBuf []float64
	speeds []float64
}

// New creates the Tracers for the calling worker with no particles. spatial
// decides which worker owns each particle and must cover as many workers as
// comm and the same box width as p.
func New(
	comm mpi.Comm, spatial *partition.Spatial, rhs RHS, p Params,
) (*Tracers, error) {
	if err := p.Check(); err != nil { return nil, err }
	if spatial.Workers() != comm.Size() {
		return nil, g_error.Config("The partition has %d workers, but the "+
			"communicator has %d.", spatial.Workers(), comm.Size())
	} else if spatial.Width != p.Box[spatial.Axis] {
		return nil, g_error.Config("The partition covers a width of %g "+
			"along axis %d, but the box is %g wide.", spatial.Width,
			spatial.Axis, p.Box[spatial.Axis])
	}

	log := p.Logger
	if log == nil { log = slog.Default() }

	return &Tracers{
		comm: comm, spatial: spatial, rhs: rhs, p: p,
		log: log.With("tracers", p.Name),
		set: particles.NewSet(p.NComponents, p.MaxOrder),
	}, nil
}

// Load replaces the local particles with the ones this worker owns from a
// global state array holding NComponents values per particle in id order.
// Every worker must pass the same array.
func (t *Tracers) Load(state []float64) error {
	if int64(len(state)) != t.p.NParticles*int64(t.p.NComponents) {
		return g_error.Config("An initial state for %d particles with %d "+
			"components needs %d values, but has %d.", t.p.NParticles,
			t.p.NComponents, t.p.NParticles*int64(t.p.NComponents),
			len(state))
	}
	t.set = particles.NewSet(t.p.NComponents, t.p.MaxOrder)
	particles.Load(t.set, state, t.comm.Rank(), t.spatial.OwnerOf)
	return nil
}

// Params returns the parameters t was created with.
func (t *Tracers) Params() Params { return t.p }

// Iteration returns the number of steps taken so far.
func (t *Tracers) Iteration() int { return t.iteration }

// SetIteration overwrites the iteration counter.
func (t *Tracers) SetIteration(i int) { t.iteration = i }

// Time returns the simulated time, Iteration() * Dt.
func (t *Tracers) Time() float64 { return float64(t.iteration) * t.p.Dt }

// Local returns the particles owned by this worker. The Set is replaced by
// Load and Read, so don't hold on to it across those calls.
func (t *Tracers) Local() *particles.Set { return t.set }

// Speeds returns the speed of each local particle at the start of the last
// step, in local slot order at that time.
func (t *Tracers) Speeds() []float64 { return t.speeds }

// GlobalCount returns the number of particles on all workers. It is
// collective.
func (t *Tracers) GlobalCount() (int64, error) {
	buf := []float64{ float64(t.set.Len()) }
	if err := t.comm.AllreduceSumFloat64(buf, buf); err != nil {
		return 0, err
	}
	return int64(buf[0]), nil
}

// Step advances every particle by one time step and moves particles to their
// new owners. It is collective.
func (t *Tracers) Step() error {
	set, nc := t.set, t.p.NComponents
	n := set.Len()

	if cap(t.rhsBuf) < n*nc {
		t.rhsBuf = make([]float64, n*nc)
	}
	rhs := t.rhsBuf[:n*nc]
	if err := t.rhs.Eval(set.State, nc, rhs); err != nil { return err }

	t.speeds = t.speeds[:0]
	for i := 0; i < n; i++ {
		cur := rhs[i*nc: (i+1)*nc]
		t.speeds = append(t.speeds, floats.Norm(cur[:3], 2))

		t.advance(i, cur)
		rollHistory(set, i, cur)
		if err := t.wrap(i); err != nil { return err }
	}

	t.iteration++
	t.log.Debug("Took step.", "iteration", t.iteration, "local", n)

	return particles.Redistribute(t.comm, set, t.spatial.OwnerOf)
}

// advance applies one Adams-Bashforth step to the particle in slot i using
// the new RHS sample cur and the particle's history.
func (t *Tracers) advance(i int, cur []float64) {
	set := t.set
	order := set.Count[i] + 1
	if order > t.p.MaxOrder { order = t.p.MaxOrder }
	coeffs := abCoeffs[order - 1]

	row := set.Row(i)
	floats.AddScaled(row, t.p.Dt*coeffs[0], cur)
	for k := 1; k < order; k++ {
		floats.AddScaled(row, t.p.Dt*coeffs[k], set.HistoryRow(i, k-1))
	}
}

// rollHistory pushes cur to the front of a particle's history, dropping the
// oldest sample if the history is full.
func rollHistory(set *particles.Set, i int, cur []float64) {
	for k := set.MaxOrder - 1; k > 0; k-- {
		copy(set.HistoryRow(i, k), set.HistoryRow(i, k-1))
	}
	copy(set.HistoryRow(i, 0), cur)
	if set.Count[i] < set.MaxOrder { set.Count[i]++ }
}

// wrap moves the position of the particle in slot i back into the box. A
// step may carry a particle at most one box width past an edge, so a single
// shift by the box width must land it inside.
func (t *Tracers) wrap(i int) error {
	pos := t.set.Position(i)
	for k := range pos {
		L := t.p.Box[k]
		x := pos[k]
		if x < 0 {
			x += L
			// -tiny + L rounds to L.
			if x == L { x = 0 }
		} else if x >= L {
			x -= L
		}

		if !(x >= 0 && x < L) {
			return g_error.Invariant("Particle %d is at %g on axis %d, more "+
				"than one box width (%g) outside the box. The time step is "+
				"too large.", t.set.IDs[i], pos[k], k, L)
		}
		pos[k] = x
	}
	return nil
}

// checkID panics if id can't index a dense global array.
func (t *Tracers) checkID(id int64) {
	if id < 0 || id >= t.p.NParticles {
		panic(fmt.Sprintf("Particle id %d is outside [0, %d).",
			id, t.p.NParticles))
	}
}
