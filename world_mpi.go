//go:build mpi

package main

import (
	"github.com/phil-mansfield/tracers/lib"
	g_error "github.com/phil-mansfield/tracers/lib/error"
	"github.com/phil-mansfield/tracers/lib/mpi"
)

const runMode = lib.MPIMode

// runWorkers runs fn once on this MPI rank. The number of workers is set by
// the MPI launcher. If fn fails, the error is reported and the whole job is
// aborted.
func runWorkers(args *lib.Args, fn func(c mpi.Comm) error) error {
	if err := mpi.Init(); err != nil { return err }

	comm, err := mpi.NewMPIComm()
	if err == nil { err = fn(comm) }
	if err != nil {
		g_error.Report(err)
		mpi.Abort(1)
	}
	return mpi.Finalize()
}
