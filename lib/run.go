package lib

/* run.go contains the per-worker bodies of the "init" and "run" modes. */

import (
	"errors"
	"log/slog"

	"github.com/phil-mansfield/tracers/lib/checkpoint"
	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/mpi"
	"github.com/phil-mansfield/tracers/lib/stats"
)

// errRootFailed is returned by workers other than rank 0 when rank 0 could
// not set up the checkpoint store.
var errRootFailed = errors.New("Rank 0 could not set up the checkpoint store.")

// Init creates the checkpoint store, places the particles, and writes
// iteration 0. It is collective.
func Init(comm mpi.Comm, args *Args, log *slog.Logger) error {
	log = log.With("rank", comm.Rank())

	var store *checkpoint.Store
	err := agree(comm, func() (err error) {
		store, err = checkpoint.Create(args.CheckpointDir, Datasets(args))
		return err
	})
	if err != nil { return err }

	s, err := NewSampler(comm, args)
	if err != nil { return err }
	tr, err := NewTracers(comm, args, s, log)
	if err != nil { return err }

	state, err := InitialState(args)
	if err != nil { return err }
	if err := tr.Load(state); err != nil { return err }

	if err := tr.Write(store, args.RHSOutputs.Contains(0)); err != nil {
		return err
	}
	if err := tr.SampleWrite(store, VelocityDataset(args.Name), s); err != nil {
		return err
	}

	if comm.Rank() == 0 {
		log.Info("Initialized checkpoint.", "dir", args.CheckpointDir,
			"particles", args.Particles)
	}
	return nil
}

// Run restarts from iteration args.Restart and takes args.Iterations steps,
// writing a checkpoint every TrajectoryStride steps. It is collective.
func Run(comm mpi.Comm, args *Args, log *slog.Logger) error {
	log = log.With("rank", comm.Rank())

	var (
		store *checkpoint.Store
		w     *stats.Writer
	)
	err := agree(comm, func() (err error) {
		store, err = checkpoint.Open(args.CheckpointDir)
		if err != nil { return err }
		w, err = stats.NewWriter(args.StatsFile, args.Restart > 0)
		return err
	})
	if err != nil { return err }
	defer w.Close()

	s, err := NewSampler(comm, args)
	if err != nil { return err }
	tr, err := NewTracers(comm, args, s, log)
	if err != nil { return err }

	if err := tr.Read(store, args.Restart); err != nil { return err }

	end := args.Restart + args.Iterations
	for tr.Iteration() < end {
		if err := tr.Step(); err != nil { return err }

		it := tr.Iteration()
		if it % args.TrajectoryStride != 0 { continue }

		if err := tr.Write(store, args.RHSOutputs.Contains(it)); err != nil {
			return err
		}
		err := tr.SampleWrite(store, VelocityDataset(args.Name), s)
		if err != nil { return err }

		row, err := stats.Collect(comm, it, tr.Time(), tr.Speeds())
		if err != nil { return err }
		if comm.Rank() == 0 {
			if err := w.Write(row); err != nil { return err }
			log.Info("Finished output.", "iteration", it,
				"particles", row.Count, "max_speed", row.MaxSpeed)
		}
	}

	return nil
}

// agree runs setup on rank 0 and tells every worker whether it worked. Rank 0
// returns setup's error and other ranks return an error of the same kind.
func agree(comm mpi.Comm, setup func() error) error {
	status := []float64{ 0 }
	var err error
	if comm.Rank() == 0 {
		if err = setup(); err != nil {
			status[0] = float64(g_error.Kind(err))
			if status[0] == 0 { status[0] = -1 }
		}
	}

	if cerr := comm.BcastFloat64(status, 0); cerr != nil { return cerr }
	if comm.Rank() == 0 || status[0] == 0 { return err }

	if g_error.ErrorKind(status[0]) == g_error.ConfigKind {
		return g_error.Config("%w", errRootFailed)
	}
	return errRootFailed
}
