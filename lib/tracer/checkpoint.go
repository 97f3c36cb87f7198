package tracer

import (
	"errors"

	"github.com/phil-mansfield/tracers/lib/checkpoint"
	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/interp"
	"github.com/phil-mansfield/tracers/lib/particles"
)

// Status codes broadcast by rank 0 after it touches the store.
const (
	statusOK = iota
	statusMissingSlab
	statusConfig
	statusOther
)

// StateDataset returns the name of the dataset holding particle states.
func StateDataset(name string) string { return name + "/state" }

// RHSDataset returns the name of the dataset holding RHS histories.
func RHSDataset(name string) string { return name + "/rhs" }

// Datasets returns the checkpoint datasets needed by Tracers with the given
// parameters. State slabs have shape {NParticles, NComponents} and RHS slabs
// have shape {MaxOrder, NParticles, NComponents}.
func Datasets(p Params) []checkpoint.Dataset {
	n, nc := p.NParticles, int64(p.NComponents)
	return []checkpoint.Dataset{
		{ StateDataset(p.Name), []int64{ n, nc } },
		{ RHSDataset(p.Name), []int64{ int64(p.MaxOrder), n, nc } },
	}
}

// Slab returns the checkpoint slab holding the given iteration and an error
// if the iteration doesn't fall on a slab.
func (t *Tracers) Slab(iteration int) (int, error) {
	if iteration < 0 || iteration % t.p.TrajectoryStride != 0 {
		return 0, g_error.Config("Iteration %d is not a multiple of the "+
			"trajectory stride, %d, so it has no checkpoint slab.",
			iteration, t.p.TrajectoryStride)
	}
	return iteration / t.p.TrajectoryStride, nil
}

// Write writes the current particle states to the store, along with their
// RHS histories if withRHS is true. It is collective. Only rank 0 touches the
// store, so other ranks may pass nil. Every rank returns an error if the
// write fails.
func (t *Tracers) Write(store *checkpoint.Store, withRHS bool) error {
	slab, err := t.Slab(t.iteration)
	if err != nil { return err }

	nc, set := t.p.NComponents, t.set
	state, err := t.gather(nc, func(i int, out []float64) {
		copy(out, set.Row(i))
	})
	if err != nil { return err }

	var hist []float64
	if withRHS {
		hist, err = t.gatherHistory()
		if err != nil { return err }
	}

	err = t.root(func() error {
		name := StateDataset(t.p.Name)
		if err := store.Write(name, slab, state); err != nil { return err }
		if withRHS {
			name = RHSDataset(t.p.Name)
			if err := store.Write(name, slab, hist); err != nil { return err }
		}
		t.log.Info("Wrote checkpoint.", "iteration", t.iteration,
			"slab", slab, "rhs", withRHS)
		return nil
	}, nil)
	return err
}

// Read replaces the local particles with the ones this worker owns in the
// checkpoint for the given iteration and sets the iteration counter. If the
// checkpoint also has RHS histories, they are restored and each particle's
// history count is min(iteration, MaxOrder). Otherwise integration restarts
// at first order. It is collective, and only rank 0 touches the store.
func (t *Tracers) Read(store *checkpoint.Store, iteration int) error {
	slab, err := t.Slab(iteration)
	if err != nil { return err }

	n, nc, maxOrder := int(t.p.NParticles), t.p.NComponents, t.p.MaxOrder
	state := make([]float64, n*nc)
	hist := make([]float64, maxOrder*n*nc)

	// flags[0] is 1 if there is an RHS slab.
	flags := []float64{ 0 }
	err = t.root(func() error {
		if err := store.Read(StateDataset(t.p.Name), slab, state); err != nil {
			return err
		}
		if store.Has(RHSDataset(t.p.Name), slab) {
			flags[0] = 1
			return store.Read(RHSDataset(t.p.Name), slab, hist)
		}
		return nil
	}, flags)
	if err != nil { return err }

	if err := t.comm.BcastFloat64(state, 0); err != nil { return err }
	hasRHS := flags[0] != 0
	if hasRHS {
		if err := t.comm.BcastFloat64(hist, 0); err != nil { return err }
	}

	count := 0
	if hasRHS {
		count = iteration
		if count > maxOrder { count = maxOrder }
	}

	// Every worker holds the whole checkpoint and keeps its own particles.
	all := particles.NewSet(nc, maxOrder)
	rank, row := t.comm.Rank(), make([]float64, maxOrder*nc)
	mine := []int{}
	for id := 0; id < n; id++ {
		x := state[id*nc: (id+1)*nc]
		if t.spatial.OwnerOf(x) == rank { mine = append(mine, id) }

		if !hasRHS {
			all.Append(int64(id), x, nil, 0)
			continue
		}
		for k := 0; k < maxOrder; k++ {
			start := (k*n + id)*nc
			copy(row[k*nc: (k+1)*nc], hist[start: start + nc])
		}
		all.Append(int64(id), x, row, count)
	}

	set := particles.NewSet(nc, maxOrder)
	if err := all.Transfer(set, mine); err != nil { return err }
	set.Reindex()
	t.set = set

	t.iteration = iteration
	if rank == 0 {
		t.log.Info("Read checkpoint.", "iteration", iteration, "slab", slab,
			"rhs", hasRHS)
	}
	return nil
}

// SampleWrite samples s at every particle position and writes the samples
// to the current slab of the named dataset, which must have slabs of shape
// {NParticles, s.Components()}. It is collective.
func (t *Tracers) SampleWrite(
	store *checkpoint.Store, dataset string, s *interp.Sampler,
) error {
	slab, err := t.Slab(t.iteration)
	if err != nil { return err }

	set, nc, ns := t.set, t.p.NComponents, s.Components()
	samples := make([]float64, set.Len()*ns)
	if err := s.SampleAll(set.State, nc, samples); err != nil { return err }

	dense, err := t.gather(ns, func(i int, out []float64) {
		copy(out, samples[i*ns: (i+1)*ns])
	})
	if err != nil { return err }

	return t.root(func() error {
		if err := store.Write(dataset, slab, dense); err != nil {
			return err
		}
		t.log.Info("Wrote samples.", "dataset", dataset,
			"iteration", t.iteration, "slab", slab)
		return nil
	}, nil)
}

// gather builds a dense array with width values per particle in id order.
// fill(i, out) writes the values for local slot i. It is collective.
func (t *Tracers) gather(
	width int, fill func(i int, out []float64),
) ([]float64, error) {
	dense := make([]float64, int(t.p.NParticles)*width)
	for i, id := range t.set.IDs {
		t.checkID(id)
		fill(i, dense[int(id)*width: int(id+1)*width])
	}
	if err := t.comm.AllreduceSumFloat64(dense, dense); err != nil {
		return nil, err
	}
	return dense, nil
}

// gatherHistory builds a dense {MaxOrder, NParticles, NComponents} array of
// RHS histories. Slots past a particle's history count are zero.
func (t *Tracers) gatherHistory() ([]float64, error) {
	set, n, nc := t.set, int(t.p.NParticles), t.p.NComponents
	dense := make([]float64, t.p.MaxOrder*n*nc)
	for i, id := range set.IDs {
		t.checkID(id)
		for k := 0; k < set.Count[i]; k++ {
			start := (k*n + int(id))*nc
			copy(dense[start: start + nc], set.HistoryRow(i, k))
		}
	}
	if err := t.comm.AllreduceSumFloat64(dense, dense); err != nil {
		return nil, err
	}
	return dense, nil
}

// root runs fn on rank 0 and broadcasts the outcome so that every rank
// returns an error of the same kind. extra is broadcast along with the status
// and may be nil.
func (t *Tracers) root(fn func() error, extra []float64) error {
	buf := make([]float64, 1 + len(extra))

	var err error
	if t.comm.Rank() == 0 {
		err = fn()
		buf[0] = float64(statusCode(err))
		copy(buf[1:], extra)
	}

	if cerr := t.comm.BcastFloat64(buf, 0); cerr != nil { return cerr }
	copy(extra, buf[1:])

	if t.comm.Rank() == 0 { return err }
	return statusError(int(buf[0]))
}

func statusCode(err error) int {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, checkpoint.ErrMissingSlab):
		return statusMissingSlab
	case g_error.Kind(err) == g_error.ConfigKind:
		return statusConfig
	}
	return statusOther
}

func statusError(code int) error {
	switch code {
	case statusOK:
		return nil
	case statusMissingSlab:
		return g_error.Config("Rank 0 could not read the checkpoint: %w",
			checkpoint.ErrMissingSlab)
	case statusConfig:
		return g_error.Config("Rank 0 could not access the checkpoint store.")
	}
	return errors.New("Rank 0 failed while accessing the checkpoint store.")
}
