package lib

/* thread.go contains functions useful for multi-threading. */

import (
	"runtime"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

// SetThreads sets the number of OS threads that run goroutines at once. n = 0
// leaves the Go default alone and n = -1 uses every core.
func SetThreads(n int) error {
	switch {
	case n == 0:
		return nil
	case n == -1:
		n = runtime.NumCPU()
	case n < -1:
		return g_error.Config("%d threads requested. Threads must be "+
			"positive, 0, or -1.", n)
	case n > runtime.NumCPU():
		return g_error.Config("%d threads requested, but your system only "+
			"has %d cores per node. If you want tracers to use the maximum "+
			"number of threads per node, set Threads=-1.", n,
			runtime.NumCPU())
	}

	runtime.GOMAXPROCS(n)
	return nil
}
