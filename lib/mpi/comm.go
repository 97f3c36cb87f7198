/*package mpi contains the collective operations that workers use to talk to
one another. There are two implementations of Comm:

  World    - n workers running as goroutines inside a single process. This is
             what tests use and what the driver uses by default.
  MPIComm  - a thin cgo wrapper around MPI_COMM_WORLD. Only compiled with the
             "mpi" build tag, since it needs an MPI installation.

All operations are collective: every worker in the group must call the same
operations in the same order. A worker with nothing to send still has to
participate. None of them time out.
*/
package mpi

import (
	"fmt"
)

// Comm is a communicator connecting a fixed group of workers.
type Comm interface {
	// Rank returns the index of the calling worker in [0, Size()).
	Rank() int
	// Size returns the number of workers in the group.
	Size() int

	// Barrier blocks until every worker has called it.
	Barrier() error

	// AlltoallInt sends send[j] to worker j and returns the values received
	// from each worker. len(send) must equal Size().
	AlltoallInt(send []int) ([]int, error)

	// AlltoallvFloat64 sends send[sendDisp[j]: sendDisp[j]+sendCounts[j]]
	// to worker j and writes the block received from worker i to
	// recv[recvDisp[i]: recvDisp[i]+recvCounts[i]].
	AlltoallvFloat64(send []float64, sendCounts, sendDisp []int,
		recv []float64, recvCounts, recvDisp []int) error
	// AlltoallvInt64 is the []int64 version of AlltoallvFloat64.
	AlltoallvInt64(send []int64, sendCounts, sendDisp []int,
		recv []int64, recvCounts, recvDisp []int) error

	// AllreduceSumFloat64 writes the elementwise sum of every worker's in
	// to out. in and out may be the same slice.
	AllreduceSumFloat64(in, out []float64) error
	// BcastFloat64 overwrites buf on every worker with root's buf.
	BcastFloat64(buf []float64, root int) error
}

// Displacements returns the offsets of contiguous blocks with the given
// counts, along with the total length.
func Displacements(counts []int) (disp []int, total int) {
	disp = make([]int, len(counts))
	for i := range counts {
		disp[i] = total
		total += counts[i]
	}
	return disp, total
}

// checkAlltoallv validates the argument arrays of an Alltoallv call.
func checkAlltoallv(
	size, nSend, nRecv int, sendCounts, sendDisp, recvCounts, recvDisp []int,
) error {
	if len(sendCounts) != size || len(sendDisp) != size ||
		len(recvCounts) != size || len(recvDisp) != size {
		return fmt.Errorf("Alltoallv was given count/displacement arrays "+
			"of lengths %d, %d, %d, %d, but the group has %d workers.",
			len(sendCounts), len(sendDisp), len(recvCounts), len(recvDisp),
			size)
	}
	for j := 0; j < size; j++ {
		if sendCounts[j] < 0 || sendDisp[j] < 0 ||
			sendDisp[j]+sendCounts[j] > nSend {
			return fmt.Errorf("Send block %d, [%d, %d), is outside the "+
				"send buffer of length %d.", j, sendDisp[j],
				sendDisp[j]+sendCounts[j], nSend)
		}
		if recvCounts[j] < 0 || recvDisp[j] < 0 ||
			recvDisp[j]+recvCounts[j] > nRecv {
			return fmt.Errorf("Receive block %d, [%d, %d), is outside the "+
				"receive buffer of length %d.", j, recvDisp[j],
				recvDisp[j]+recvCounts[j], nRecv)
		}
	}
	// Receive blocks may not overlap; send blocks may.
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if recvCounts[i] == 0 || recvCounts[j] == 0 { continue }
			if recvDisp[i] < recvDisp[j]+recvCounts[j] &&
				recvDisp[j] < recvDisp[i]+recvCounts[i] {
				return fmt.Errorf("Receive blocks %d, [%d, %d), and %d, "+
					"[%d, %d), overlap.", i, recvDisp[i],
					recvDisp[i]+recvCounts[i], j, recvDisp[j],
					recvDisp[j]+recvCounts[j])
			}
		}
	}
	return nil
}
