package tracer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/tracers/lib/checkpoint"
	"github.com/phil-mansfield/tracers/lib/eq"
	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/field"
	"github.com/phil-mansfield/tracers/lib/interp"
	"github.com/phil-mansfield/tracers/lib/mpi"
	"github.com/phil-mansfield/tracers/lib/particles"
	"github.com/phil-mansfield/tracers/lib/partition"
)

// newTracers builds the Tracers for one worker with the box split into cells
// cells along axis.
func newTracers(
	c mpi.Comm, p Params, axis, cells int, rhs RHS,
) (*Tracers, error) {
	idx, err := partition.New(cells, c.Size())
	if err != nil { return nil, err }
	sp, err := partition.NewSpatial(idx, axis, p.Box[axis])
	if err != nil { return nil, err }
	return New(c, sp, rhs, p)
}

func constantRHS(v []float64) RHS {
	return RHSFunc(func(state []float64, nc int, out []float64) error {
		for i := 0; i*nc < len(state); i++ {
			copy(out[i*nc: (i+1)*nc], v)
		}
		return nil
	})
}

// checkOwnership returns an error if any particle is on the wrong worker.
func checkOwnership(t *Tracers) error {
	set := t.Local()
	for i := 0; i < set.Len(); i++ {
		if r := t.spatial.OwnerOf(set.Row(i)); r != t.comm.Rank() {
			return fmt.Errorf("Particle %d on worker %d belongs to %d.",
				set.IDs[i], t.comm.Rank(), r)
		}
	}
	return nil
}

func TestABCoefficients(t *testing.T) {
	for k := range abCoeffs {
		sum := 0.0
		for _, c := range abCoeffs[k] { sum += c }
		if len(abCoeffs[k]) != k + 1 {
			t.Errorf("%d) Expected %d coefficients, got %d.",
				k, k + 1, len(abCoeffs[k]))
		} else if math.Abs(sum - 1) > 1e-12 {
			t.Errorf("%d) Expected coefficients to sum to 1, got %g.", k, sum)
		}
	}
	assert.Equal(t, []float64{55.0/24, -59.0/24, 37.0/24, -9.0/24}, abCoeffs[3])
}

func TestParamsCheck(t *testing.T) {
	good := Params{
		NParticles: 8, NComponents: 3, MaxOrder: 4, Dt: 0.1,
		Box: [3]float64{1, 1, 1}, TrajectoryStride: 1, Name: "x",
	}
	require.NoError(t, good.Check())

	tests := []func(p *Params){
		func(p *Params) { p.MaxOrder = 0 },
		func(p *Params) { p.MaxOrder = 7 },
		func(p *Params) { p.NParticles = 0 },
		func(p *Params) { p.NComponents = 2 },
		func(p *Params) { p.Dt = 0 },
		func(p *Params) { p.Dt = math.Inf(1) },
		func(p *Params) { p.TrajectoryStride = 0 },
		func(p *Params) { p.Name = "" },
		func(p *Params) { p.Box[1] = -1 },
	}
	for i := range tests {
		p := good
		tests[i](&p)
		err := p.Check()
		if g_error.Kind(err) != g_error.ConfigKind {
			t.Errorf("%d) Expected a configuration error, got %v.", i, err)
		}
	}
}

func TestZeroFieldStaysPut(t *testing.T) {
	box := [3]float64{1, 2, 3}
	p := Params{
		NParticles: 27, NComponents: 4, MaxOrder: 1, Dt: 0.25, Box: box,
		TrajectoryStride: 1, Name: "zero",
	}
	state, err := particles.Lattice(p.NParticles, p.NComponents, box)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 3} {
		err := mpi.NewWorld(workers).Run(func(c mpi.Comm) error {
			tr, err := newTracers(c, p, 1, 6, constantRHS(make([]float64, 4)))
			if err != nil { return err }
			if err := tr.Load(state); err != nil { return err }

			for i := 0; i < 5; i++ {
				if err := tr.Step(); err != nil { return err }
			}

			set := tr.Local()
			for i := 0; i < set.Len(); i++ {
				id := int(set.IDs[i])
				if !eq.Float64s(set.Row(i), state[id*4: (id+1)*4]) {
					return fmt.Errorf("Particle %d moved from %g to %g.", id,
						state[id*4: (id+1)*4], set.Row(i))
				}
			}
			n, err := tr.GlobalCount()
			if err != nil { return err }
			if n != p.NParticles {
				return fmt.Errorf("Expected %d particles, got %d.",
					p.NParticles, n)
			}
			return checkOwnership(tr)
		})
		assert.NoError(t, err, "workers = %d", workers)
	}
}

func TestUniformField(t *testing.T) {
	box := [3]float64{2, 3, 5}
	v := []float64{0.3, -0.7, 1.1}
	steps := 17

	for _, order := range []int{1, 2, 4, 6} {
		p := Params{
			NParticles: 64, NComponents: 3, MaxOrder: order, Dt: 0.5,
			Box: box, TrajectoryStride: 1, Name: "uniform",
		}
		state, err := particles.Lattice(p.NParticles, 3, box)
		require.NoError(t, err)

		err = mpi.NewWorld(3).Run(func(c mpi.Comm) error {
			tr, err := newTracers(c, p, 2, 10, constantRHS(v))
			if err != nil { return err }
			if err := tr.Load(state); err != nil { return err }

			for i := 0; i < steps; i++ {
				if err := tr.Step(); err != nil { return err }
				if err := checkOwnership(tr); err != nil { return err }
			}

			set := tr.Local()
			for i := 0; i < set.Len(); i++ {
				id := int(set.IDs[i])
				for k := 0; k < 3; k++ {
					x0 := state[3*id + k]
					expected := x0 + float64(steps)*p.Dt*v[k]
					x := set.Row(i)[k]
					if !eq.Periodic(x, expected, box[k], 1e-9) {
						return fmt.Errorf("order %d, particle %d, axis %d: "+
							"expected %g (mod %g), got %g.", order, id, k,
							expected, box[k], x)
					}
					if x < 0 || x >= box[k] {
						return fmt.Errorf("Particle %d is outside the box "+
							"at %g.", id, x)
					}
				}
			}

			n, err := tr.GlobalCount()
			if err != nil { return err }
			if n != p.NParticles {
				return fmt.Errorf("Expected %d particles, got %d.",
					p.NParticles, n)
			}
			return nil
		})
		assert.NoError(t, err, "order = %d", order)
	}
}

func TestHistoryCount(t *testing.T) {
	box := [3]float64{1, 1, 1}
	p := Params{
		NParticles: 8, NComponents: 3, MaxOrder: 3, Dt: 0.1, Box: box,
		TrajectoryStride: 1, Name: "history",
	}
	state, err := particles.Lattice(p.NParticles, 3, box)
	require.NoError(t, err)

	err = mpi.NewWorld(2).Run(func(c mpi.Comm) error {
		tr, err := newTracers(c, p, 0, 4, constantRHS([]float64{0.9, 0, 0}))
		if err != nil { return err }
		if err := tr.Load(state); err != nil { return err }

		for it := 1; it <= 6; it++ {
			if err := tr.Step(); err != nil { return err }
			bound := it
			if bound > p.MaxOrder { bound = p.MaxOrder }

			set := tr.Local()
			for i := 0; i < set.Len(); i++ {
				if set.Count[i] != bound {
					return fmt.Errorf("Iteration %d: particle %d has "+
						"history count %d, expected %d.", it, set.IDs[i],
						set.Count[i], bound)
				}
				// The newest sample is always in slot 0.
				if set.HistoryRow(i, 0)[0] != 0.9 {
					return fmt.Errorf("Iteration %d: particle %d has newest "+
						"sample %g.", it, set.IDs[i], set.HistoryRow(i, 0))
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRollHistory(t *testing.T) {
	set := particles.NewSet(3, 3)
	set.Append(0, []float64{0, 0, 0}, nil, 0)

	for s := 1; s <= 5; s++ {
		rollHistory(set, 0, []float64{float64(s), 0, 0})
	}
	assert.Equal(t, 3, set.Count[0])
	for k, expected := range []float64{5, 4, 3} {
		assert.Equal(t, expected, set.HistoryRow(0, k)[0], "slot %d", k)
	}
}

func TestWrapInvariant(t *testing.T) {
	box := [3]float64{10, 10, 10}
	tests := []struct {
		v        []float64
		valid    bool
		expected []float64
	}{
		{[]float64{9, 0, 0}, true, []float64{3.5, 0.5, 0.5}},
		{[]float64{-9, 0, 0}, true, []float64{5.5, 0.5, 0.5}},
		{[]float64{0, -0.7, 9.4}, true, []float64{4.5, 9.8, 9.9}},
		{[]float64{35, 0, 0}, false, nil},
		{[]float64{0, -15, 0}, false, nil},
		{[]float64{0, 0, 20}, false, nil},
		{[]float64{math.NaN(), 0, 0}, false, nil},
	}

	for i := range tests {
		p := Params{
			NParticles: 1, NComponents: 3, MaxOrder: 1, Dt: 1, Box: box,
			TrajectoryStride: 1, Name: "wrap",
		}
		c := mpi.NewWorld(1).Comm(0)
		tr, err := newTracers(c, p, 0, 4, constantRHS(tests[i].v))
		require.NoError(t, err)
		require.NoError(t, tr.Load([]float64{4.5, 0.5, 0.5}))

		err = tr.Step()
		var ie *g_error.InvariantError
		if !tests[i].valid {
			if !errors.As(err, &ie) {
				t.Errorf("%d) Expected an invariant error, got %v.", i, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%d) Expected no error, got %v.", i, err)
			continue
		}
		assert.InDeltaSlice(t, tests[i].expected, tr.Local().Row(0), 1e-12,
			"%d)", i)
	}
}

// velocityWorld runs fn on every worker of a two-worker world with Tracers
// advected by a uniform velocity field sampled from a grid.
func velocityWorld(
	t *testing.T, p Params, v [3]float64, state []float64,
	fn func(c mpi.Comm, tr *Tracers) error,
) {
	t.Helper()
	dims := [3]int{10, 4, 4}
	err := mpi.NewWorld(2).Run(func(c mpi.Comm) error {
		f, err := field.NewSlab[float64](c, dims, 0, 3, 1)
		if err != nil { return err }
		if err := f.FillVelocity(p.Box, field.UniformVelocity(v)); err != nil {
			return err
		}
		basis, err := interp.NewLagrange(1)
		if err != nil { return err }
		s, err := interp.NewSampler(f, basis, p.Box, 0)
		if err != nil { return err }

		tr, err := newTracers(c, p, 0, dims[0], NewVelocityRHS(s))
		if err != nil { return err }
		if err := tr.Load(state); err != nil { return err }
		return fn(c, tr)
	})
	require.NoError(t, err)
}

func TestEndToEndCrossing(t *testing.T) {
	p := Params{
		NParticles: 1, NComponents: 3, MaxOrder: 4, Dt: 1,
		Box: [3]float64{10, 10, 10}, TrajectoryStride: 1, Name: "e2e",
	}

	type snapshot struct {
		rank int
		x    float64
	}
	var (
		mu    sync.Mutex
		after = map[int][]snapshot{}
	)

	velocityWorld(t, p, [3]float64{1, 0, 0}, []float64{4.5, 0, 0},
		func(c mpi.Comm, tr *Tracers) error {
			for it := 1; it <= 10; it++ {
				if err := tr.Step(); err != nil { return err }
				set := tr.Local()
				mu.Lock()
				for i := 0; i < set.Len(); i++ {
					after[it] = append(after[it],
						snapshot{c.Rank(), set.Row(i)[0]})
				}
				mu.Unlock()
			}
			return nil
		})

	tests := []struct {
		iteration, rank int
		x               float64
	}{
		{1, 1, 5.5},
		{5, 1, 9.5},
		{6, 0, 0.5},
		{10, 0, 4.5},
	}
	for i := range tests {
		s := after[tests[i].iteration]
		if len(s) != 1 {
			t.Errorf("%d) Expected exactly one copy of the particle, got %v.",
				i, s)
			continue
		}
		if s[0].rank != tests[i].rank ||
			math.Abs(s[0].x - tests[i].x) > 1e-9 {
			t.Errorf("%d) Expected particle at %g on worker %d, got %g on "+
				"worker %d.", i, tests[i].x, tests[i].rank, s[0].x, s[0].rank)
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	box := [3]float64{1, 1, 1}
	p := Params{
		NParticles: 27, NComponents: 4, MaxOrder: 3, Dt: 0.05, Box: box,
		TrajectoryStride: 2, Name: "rt",
	}
	state, err := particles.Lattice(p.NParticles, p.NComponents, box)
	require.NoError(t, err)
	v := []float64{0.7, 0.2, -0.4, 1}

	dir := t.TempDir()
	store, err := checkpoint.Create(dir, Datasets(p))
	require.NoError(t, err)

	// Reference run: 8 steps on one worker.
	ref := make([]float64, p.NParticles*4)
	err = mpi.NewWorld(1).Run(func(c mpi.Comm) error {
		tr, err := newTracers(c, p, 2, 6, constantRHS(v))
		if err != nil { return err }
		if err := tr.Load(state); err != nil { return err }
		for i := 0; i < 8; i++ {
			if err := tr.Step(); err != nil { return err }
		}
		set := tr.Local()
		for i := 0; i < set.Len(); i++ {
			copy(ref[set.IDs[i]*4:], set.Row(i))
		}
		return nil
	})
	require.NoError(t, err)

	// Write at iteration 4 with two workers.
	err = mpi.NewWorld(2).Run(func(c mpi.Comm) error {
		tr, err := newTracers(c, p, 2, 6, constantRHS(v))
		if err != nil { return err }
		if err := tr.Load(state); err != nil { return err }
		for i := 0; i < 4; i++ {
			if err := tr.Step(); err != nil { return err }
		}
		return tr.Write(store, true)
	})
	require.NoError(t, err)

	store, err = checkpoint.Open(dir)
	require.NoError(t, err)
	require.True(t, store.Has(StateDataset("rt"), 2))
	require.True(t, store.Has(RHSDataset("rt"), 2))

	// Read with three workers and finish the run.
	var mu sync.Mutex
	out := make([]float64, p.NParticles*4)
	err = mpi.NewWorld(3).Run(func(c mpi.Comm) error {
		tr, err := newTracers(c, p, 2, 6, constantRHS(v))
		if err != nil { return err }
		if err := tr.Read(store, 4); err != nil { return err }
		if tr.Iteration() != 4 {
			return fmt.Errorf("Expected iteration 4, got %d.", tr.Iteration())
		}
		set := tr.Local()
		for i := 0; i < set.Len(); i++ {
			if set.Count[i] != 3 {
				return fmt.Errorf("Expected history count 3, got %d.",
					set.Count[i])
			}
		}
		if err := checkOwnership(tr); err != nil { return err }

		for i := 0; i < 4; i++ {
			if err := tr.Step(); err != nil { return err }
		}

		set = tr.Local()
		mu.Lock()
		defer mu.Unlock()
		for i := 0; i < set.Len(); i++ {
			copy(out[set.IDs[i]*4:], set.Row(i))
		}
		return nil
	})
	require.NoError(t, err)

	assert.InDeltaSlice(t, ref, out, 1e-12)
}

func TestReadMissingSlab(t *testing.T) {
	box := [3]float64{1, 1, 1}
	p := Params{
		NParticles: 8, NComponents: 3, MaxOrder: 2, Dt: 0.1, Box: box,
		TrajectoryStride: 1, Name: "missing",
	}
	store, err := checkpoint.Create(t.TempDir(), Datasets(p))
	require.NoError(t, err)

	errs := make([]error, 2)
	err = mpi.NewWorld(2).Run(func(c mpi.Comm) error {
		tr, err := newTracers(c, p, 0, 4, constantRHS(make([]float64, 3)))
		if err != nil { return err }
		errs[c.Rank()] = tr.Read(store, 3)
		return nil
	})
	require.NoError(t, err)

	for r := range errs {
		if !errors.Is(errs[r], checkpoint.ErrMissingSlab) {
			t.Errorf("%d) Expected a missing slab error, got %v.", r, errs[r])
		} else if g_error.Kind(errs[r]) != g_error.ConfigKind {
			t.Errorf("%d) Expected a configuration error, got %v.", r, errs[r])
		}
	}
}

func TestWriteTwiceFailsEverywhere(t *testing.T) {
	box := [3]float64{1, 1, 1}
	p := Params{
		NParticles: 8, NComponents: 3, MaxOrder: 2, Dt: 0.1, Box: box,
		TrajectoryStride: 1, Name: "twice",
	}
	state, err := particles.Lattice(p.NParticles, 3, box)
	require.NoError(t, err)
	store, err := checkpoint.Create(t.TempDir(), Datasets(p))
	require.NoError(t, err)

	errs := make([]error, 3)
	err = mpi.NewWorld(3).Run(func(c mpi.Comm) error {
		tr, err := newTracers(c, p, 0, 4, constantRHS(make([]float64, 3)))
		if err != nil { return err }
		if err := tr.Load(state); err != nil { return err }
		if err := tr.Write(store, false); err != nil { return err }
		errs[c.Rank()] = tr.Write(store, false)
		return nil
	})
	require.NoError(t, err)

	for r := range errs {
		if g_error.Kind(errs[r]) != g_error.ConfigKind {
			t.Errorf("%d) Expected a configuration error, got %v.", r, errs[r])
		}
	}
}

func TestSampleWrite(t *testing.T) {
	p := Params{
		NParticles: 8, NComponents: 3, MaxOrder: 2, Dt: 1,
		Box: [3]float64{10, 10, 10}, TrajectoryStride: 1, Name: "sw",
	}
	state, err := particles.Lattice(p.NParticles, 3, p.Box)
	require.NoError(t, err)

	store, err := checkpoint.Create(t.TempDir(), []checkpoint.Dataset{
		{"sw/velocity", []int64{8, 3}},
	})
	require.NoError(t, err)

	velocityWorld(t, p, [3]float64{1, -2, 3}, state,
		func(c mpi.Comm, tr *Tracers) error {
			f, err := field.NewSlab[float64](c, [3]int{10, 4, 4}, 0, 3, 1)
			if err != nil { return err }
			err = f.FillVelocity(p.Box, field.UniformVelocity([3]float64{1, -2, 3}))
			if err != nil { return err }
			basis, err := interp.NewLagrange(1)
			if err != nil { return err }
			s, err := interp.NewSampler(f, basis, p.Box, 0)
			if err != nil { return err }
			return tr.SampleWrite(store, "sw/velocity", s)
		})

	out := make([]float64, 24)
	require.NoError(t, store.Read("sw/velocity", 0, out))
	for i := 0; i < 8; i++ {
		assert.InDeltaSlice(t, []float64{1, -2, 3}, out[3*i: 3*i+3], 1e-12,
			"particle %d", i)
	}
}
