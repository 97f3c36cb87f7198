//go:build !mpi

package main

import (
	"github.com/phil-mansfield/tracers/lib"
	"github.com/phil-mansfield/tracers/lib/mpi"
)

const runMode = lib.LocalMode

// runWorkers runs fn on args.Workers goroutines sharing an in-process World.
func runWorkers(args *lib.Args, fn func(c mpi.Comm) error) error {
	return mpi.NewWorld(args.Workers).Run(fn)
}
