package mpi

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

// ErrAborted is returned by every collective operation on a World after one
// of its workers has failed.
var ErrAborted = errors.New("The worker group was aborted.")

// World is a group of n workers which live in the same process and
// communicate through shared memory. Each collective is a rendezvous: every
// worker deposits its contribution and the last one to arrive publishes the
// full set to everyone.
type World struct {
	n int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	arrived int
	op      string
	slots   []interface{}
	result  []interface{}
	err     error
}

// NewWorld creates a World with n workers.
func NewWorld(n int) *World {
	if n <= 0 {
		panic(fmt.Sprintf("A World needs at least one worker, but was "+
			"given %d.", n))
	}
	w := &World{n: n, slots: make([]interface{}, n)}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Size returns the number of workers in the World.
func (w *World) Size() int { return w.n }

// Comm returns the communicator used by the given rank.
func (w *World) Comm(rank int) *LocalComm {
	if rank < 0 || rank >= w.n {
		panic(fmt.Sprintf("Rank %d is not in [0, %d).", rank, w.n))
	}
	return &LocalComm{w, rank}
}

// Abort stops the World. Every pending and future collective returns an
// error wrapping ErrAborted. Only the first call has an effect.
func (w *World) Abort(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
		w.cond.Broadcast()
	}
}

// Err returns the error that aborted the World, if any.
func (w *World) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Run runs fn once for each rank, each in its own goroutine, and waits for all
// of them to return. If any worker returns an error or panics, the World is
// aborted so that the other workers fall out of their collectives, and the
// first such error is returned.
func (w *World) Run(fn func(c Comm) error) error {
	var wg sync.WaitGroup
	for r := 0; r < w.n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					w.Abort(fmt.Errorf("Worker %d panicked: %v", r, p))
				}
			}()
			if err := fn(w.Comm(r)); err != nil {
				w.Abort(err)
			}
		}(r)
	}
	wg.Wait()
	return w.Err()
}

// exchange deposits v as rank's contribution to the collective op and
// returns every rank's contribution once all of them have arrived.
func (w *World) exchange(rank int, op string, v interface{}) (
	[]interface{}, error,
) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return nil, w.abortedErr(op)
	}

	if w.arrived == 0 {
		w.op = op
	} else if w.op != op {
		w.err = fmt.Errorf("Rank %d called %s while other workers were in "+
			"%s. Collectives must be called in the same order everywhere.",
			rank, op, w.op)
		w.cond.Broadcast()
		return nil, w.abortedErr(op)
	}

	w.slots[rank] = v
	w.arrived++

	if w.arrived == w.n {
		// Waiters read result after waking up. A later round cannot finish
		// and replace it until every one of them has come back.
		w.result = w.slots
		w.slots = make([]interface{}, w.n)
		w.arrived = 0
		w.gen++
		w.cond.Broadcast()
		return w.result, nil
	}

	gen := w.gen
	for w.gen == gen && w.err == nil {
		w.cond.Wait()
	}
	if w.gen == gen {
		return nil, w.abortedErr(op)
	}
	return w.result, nil
}

func (w *World) abortedErr(op string) error {
	return g_error.Collective(op, fmt.Errorf("%w Cause: %v", ErrAborted, w.err))
}

// LocalComm is the Comm that a single worker in a World uses.
type LocalComm struct {
	world *World
	rank  int
}

var _ Comm = &LocalComm{}

func (c *LocalComm) Rank() int { return c.rank }
func (c *LocalComm) Size() int { return c.world.n }

// fail aborts the whole World. A collective that goes wrong on one worker
// leaves the rest of the group in an undefined state.
func (c *LocalComm) fail(op string, err error) error {
	err = g_error.Collective(op, err)
	c.world.Abort(err)
	return err
}

func (c *LocalComm) Barrier() error {
	_, err := c.world.exchange(c.rank, "Barrier", nil)
	return err
}

func (c *LocalComm) AlltoallInt(send []int) ([]int, error) {
	if len(send) != c.world.n {
		return nil, c.fail("Alltoall", fmt.Errorf("Alltoall was given %d "+
			"values, but the group has %d workers.", len(send), c.world.n))
	}

	res, err := c.world.exchange(c.rank, "Alltoall",
		append([]int{}, send...))
	if err != nil {
		return nil, err
	}

	recv := make([]int, c.world.n)
	for i := range res {
		recv[i] = res[i].([]int)[c.rank]
	}
	return recv, nil
}

// block is one worker's contribution to an Alltoallv.
type block[T any] struct {
	data         []T
	counts, disp []int
}

func alltoallv[T any](
	c *LocalComm, op string, send []T, sendCounts, sendDisp []int,
	recv []T, recvCounts, recvDisp []int,
) error {
	err := checkAlltoallv(c.world.n, len(send), len(recv),
		sendCounts, sendDisp, recvCounts, recvDisp)
	if err != nil {
		return c.fail(op, err)
	}

	blk := block[T]{
		append([]T{}, send...),
		append([]int{}, sendCounts...),
		append([]int{}, sendDisp...),
	}
	res, err := c.world.exchange(c.rank, op, blk)
	if err != nil {
		return err
	}

	for i := range res {
		src := res[i].(block[T])
		n := src.counts[c.rank]
		if n != recvCounts[i] {
			return c.fail(op, fmt.Errorf("Rank %d expected %d values from "+
				"rank %d, but %d were sent.", c.rank, recvCounts[i], i, n))
		}
		start := src.disp[c.rank]
		copy(recv[recvDisp[i]:recvDisp[i]+n], src.data[start:start+n])
	}
	return nil
}

func (c *LocalComm) AlltoallvFloat64(
	send []float64, sendCounts, sendDisp []int,
	recv []float64, recvCounts, recvDisp []int,
) error {
	return alltoallv(c, "Alltoallv", send, sendCounts, sendDisp,
		recv, recvCounts, recvDisp)
}

func (c *LocalComm) AlltoallvInt64(
	send []int64, sendCounts, sendDisp []int,
	recv []int64, recvCounts, recvDisp []int,
) error {
	return alltoallv(c, "Alltoallv", send, sendCounts, sendDisp,
		recv, recvCounts, recvDisp)
}

func (c *LocalComm) AllreduceSumFloat64(in, out []float64) error {
	if len(in) != len(out) {
		return c.fail("Allreduce", fmt.Errorf("Allreduce input has length "+
			"%d, but output has length %d.", len(in), len(out)))
	}

	res, err := c.world.exchange(c.rank, "Allreduce",
		append([]float64{}, in...))
	if err != nil {
		return err
	}

	// Sum in rank order so that every worker gets bit-identical results.
	sum := make([]float64, len(in))
	for i := range res {
		x := res[i].([]float64)
		if len(x) != len(sum) {
			return c.fail("Allreduce", fmt.Errorf("Rank %d reduced %d "+
				"values, but rank %d reduced %d.", i, len(x), c.rank,
				len(sum)))
		}
		floats.Add(sum, x)
	}
	copy(out, sum)
	return nil
}

func (c *LocalComm) BcastFloat64(buf []float64, root int) error {
	if root < 0 || root >= c.world.n {
		return c.fail("Bcast", fmt.Errorf("Broadcast root %d is not in "+
			"[0, %d).", root, c.world.n))
	}

	var v interface{}
	if c.rank == root {
		v = append([]float64{}, buf...)
	}
	res, err := c.world.exchange(c.rank, "Bcast", v)
	if err != nil {
		return err
	}

	src := res[root].([]float64)
	if len(src) != len(buf) {
		return c.fail("Bcast", fmt.Errorf("Root broadcast %d values, but "+
			"rank %d expected %d.", len(src), c.rank, len(buf)))
	}
	copy(buf, src)
	return nil
}
