package particles

import (
	"github.com/phil-mansfield/tracers/lib/mpi"
)

// OwnerFunc returns the worker which should own a particle with the given
// state.
type OwnerFunc func(state []float64) int

// Redistribute moves every particle in set to the worker returned by owner.
// It is collective: every worker must call it, even if it has nothing to
// send. Particles keep their history and history count. On return set holds
// the particles this worker kept followed by the ones it received, and its
// lookup table is up to date.
func Redistribute(comm mpi.Comm, set *Set, owner OwnerFunc) error {
	n, nWorkers, rank := set.Len(), comm.Size(), comm.Rank()

	// Compute owners once and swap them along with the particles.
	dest := make([]int, n)
	for i := range dest { dest[i] = owner(set.Row(i)) }
	swap := func(i, j int) {
		dest[i], dest[j] = dest[j], dest[i]
		set.Swap(i, j)
	}
	sizes, offsets := PartitionBuckets(n, nWorkers,
		func(i int) int { return dest[i] }, swap)

	sendCounts := append([]int{}, sizes...)
	sendCounts[rank] = 0
	recvCounts, err := comm.AlltoallInt(sendCounts)
	if err != nil { return err }

	nc, hw := set.NComponents, set.historyWidth()

	// The Set is bucket-ordered now, so its arrays can be sent directly.
	sendDisp := offsets[:nWorkers]
	recvDisp, nRecv := mpi.Displacements(recvCounts)

	recvState := make([]float64, nRecv*nc)
	err = comm.AlltoallvFloat64(
		set.State, scale(sendCounts, nc), scale(sendDisp, nc),
		recvState, scale(recvCounts, nc), scale(recvDisp, nc),
	)
	if err != nil { return err }

	recvHistory := make([]float64, nRecv*hw)
	err = comm.AlltoallvFloat64(
		set.History, scale(sendCounts, hw), scale(sendDisp, hw),
		recvHistory, scale(recvCounts, hw), scale(recvDisp, hw),
	)
	if err != nil { return err }

	// ids and history counts travel together as pairs.
	sendTags := make([]int64, 2*n)
	for i := 0; i < n; i++ {
		sendTags[2*i], sendTags[2*i+1] = set.IDs[i], int64(set.Count[i])
	}
	recvTags := make([]int64, 2*nRecv)
	err = comm.AlltoallvInt64(
		sendTags, scale(sendCounts, 2), scale(sendDisp, 2),
		recvTags, scale(recvCounts, 2), scale(recvDisp, 2),
	)
	if err != nil { return err }

	// Move the kept bucket to the front and append what came in.
	keep := sizes[rank]
	for i := 0; i < keep; i++ {
		set.Swap(i, offsets[rank] + i)
	}
	set.Truncate(keep)

	for i := 0; i < nRecv; i++ {
		set.Append(recvTags[2*i], recvState[i*nc: (i+1)*nc],
			recvHistory[i*hw: (i+1)*hw], int(recvTags[2*i+1]))
	}

	set.Reindex()
	return nil
}

func scale(x []int, k int) []int {
	out := make([]int, len(x))
	for i := range x { out[i] = x[i]*k }
	return out
}
