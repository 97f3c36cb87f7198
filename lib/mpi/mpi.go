//go:build mpi

package mpi

// This header is almost the same as the one used by
// github.com/marcusthierfelder/mpi with some minor changes as well as a
// changes to the way that compilation is done. I'd import this package like
// normal, but these changes impact the underlying type system and compilation
// instructions, so that's not possible. As such, here is his license:
//
// Copyright (c) 2017 Marcus Thierfelder
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// NOTE: Use
// $ mpicc --showme:compile
// $ mpicc --showme:link
// To figure out CFLAGS and LDFLAGS, respectively

/*
#cgo LDFLAGS: -pthread -L/usr/lib/x86_64-linux-gnu/openmpi/lib -lmpi
#cgo CFLAGS: -std=gnu99 -Wall -I/usr/lib/x86_64-linux-gnu/openmpi/include/openmpi -I/usr/lib/x86_64-linux-gnu/openmpi/include -pthread
#include <mpi.h>
#include <stdlib.h>

MPI_Comm get_MPI_COMM_WORLD() {
    return (MPI_Comm)(MPI_COMM_WORLD);
}

MPI_Datatype get_MPI_Datatype(int i) {
    switch(i) {
    case 0: return (MPI_Datatype)MPI_INT;
    case 1: return (MPI_Datatype)MPI_LONG_LONG;
    case 2: return (MPI_Datatype)MPI_FLOAT;
    case 3: return (MPI_Datatype)MPI_DOUBLE;
    }
    return NULL;
}

MPI_Op get_MPI_SUM() {
    return (MPI_Op)(MPI_SUM);
}

void *get_MPI_IN_PLACE() {
    return MPI_IN_PLACE;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

var (
	COMM_WORLD C.MPI_Comm = C.get_MPI_COMM_WORLD()

	INT32   C.MPI_Datatype = C.get_MPI_Datatype(0)
	INT64   C.MPI_Datatype = C.get_MPI_Datatype(1)
	FLOAT32 C.MPI_Datatype = C.get_MPI_Datatype(2)
	FLOAT64 C.MPI_Datatype = C.get_MPI_Datatype(3)

	SUM C.MPI_Op = C.get_MPI_SUM()
)

// MPIComm is a Comm backed by MPI_COMM_WORLD. Call Init before creating one
// and Finalize once every worker is done.
type MPIComm struct {
	comm       C.MPI_Comm
	rank, size int
}

var _ Comm = &MPIComm{}

// Init initializes MPI.
func Init() error {
	return processError("Init", C.MPI_Init(nil, nil))
}

// Finalize shuts MPI down.
func Finalize() error {
	return processError("Finalize", C.MPI_Finalize())
}

// Abort kills every process in MPI_COMM_WORLD. Workers blocked in
// collectives never see an error otherwise.
func Abort(code int) {
	C.MPI_Abort(COMM_WORLD, C.int(code))
}

// NewMPIComm returns a Comm over MPI_COMM_WORLD.
func NewMPIComm() (*MPIComm, error) {
	n, r := C.int(-1), C.int(-1)
	if err := processError("Comm_size", C.MPI_Comm_size(COMM_WORLD, &n)); err != nil {
		return nil, err
	}
	if err := processError("Comm_rank", C.MPI_Comm_rank(COMM_WORLD, &r)); err != nil {
		return nil, err
	}
	return &MPIComm{COMM_WORLD, int(r), int(n)}, nil
}

func processError(op string, err C.int) error {
	if err == 0 {
		return nil
	}

	buf := make([]C.char, C.MPI_MAX_ERROR_STRING)
	n := C.int(0)
	C.MPI_Error_string(err, &buf[0], &n)
	return g_error.Collective(op, fmt.Errorf("%s", C.GoString(&buf[0])))
}

func (c *MPIComm) Rank() int { return c.rank }
func (c *MPIComm) Size() int { return c.size }

func (c *MPIComm) Barrier() error {
	return processError("Barrier", C.MPI_Barrier(c.comm))
}

func (c *MPIComm) AlltoallInt(send []int) ([]int, error) {
	if len(send) != c.size {
		return nil, g_error.Collective("Alltoall", fmt.Errorf("Alltoall was "+
			"given %d values, but the group has %d workers.",
			len(send), c.size))
	}

	cSend := make([]int64, c.size)
	cRecv := make([]int64, c.size)
	for i := range send {
		cSend[i] = int64(send[i])
	}
	err := C.MPI_Alltoall(unsafe.Pointer(&cSend[0]), 1, INT64,
		unsafe.Pointer(&cRecv[0]), 1, INT64, c.comm)
	if err := processError("Alltoall", err); err != nil {
		return nil, err
	}

	recv := make([]int, c.size)
	for i := range cRecv {
		recv[i] = int(cRecv[i])
	}
	return recv, nil
}

func alltoallvMPI[T int64 | float64](
	c *MPIComm, typ C.MPI_Datatype, send []T, sendCounts, sendDisp []int,
	recv []T, recvCounts, recvDisp []int,
) error {
	err := checkAlltoallv(c.size, len(send), len(recv),
		sendCounts, sendDisp, recvCounts, recvDisp)
	if err != nil {
		return g_error.Collective("Alltoallv", err)
	}

	// Converting between Go and C pointers is way easier if we just do this.
	// It doesn't have any impact on correctness since index [0] isn't used.
	if len(send) == 0 {
		send = []T{0}
	}
	if len(recv) == 0 {
		recv = []T{0}
	}

	n := len(sendCounts)
	cSendCounts := make([]C.int, n)
	cSendDisp := make([]C.int, n)
	cRecvCounts := make([]C.int, n)
	cRecvDisp := make([]C.int, n)

	for i := range sendCounts {
		cSendCounts[i], cSendDisp[i] = C.int(sendCounts[i]), C.int(sendDisp[i])
		cRecvCounts[i], cRecvDisp[i] = C.int(recvCounts[i]), C.int(recvDisp[i])
	}

	return processError("Alltoallv", C.MPI_Alltoallv(
		unsafe.Pointer(&send[0]), &cSendCounts[0], &cSendDisp[0], typ,
		unsafe.Pointer(&recv[0]), &cRecvCounts[0], &cRecvDisp[0], typ,
		c.comm,
	))
}

func (c *MPIComm) AlltoallvFloat64(
	send []float64, sendCounts, sendDisp []int,
	recv []float64, recvCounts, recvDisp []int,
) error {
	return alltoallvMPI(c, FLOAT64, send, sendCounts, sendDisp,
		recv, recvCounts, recvDisp)
}

func (c *MPIComm) AlltoallvInt64(
	send []int64, sendCounts, sendDisp []int,
	recv []int64, recvCounts, recvDisp []int,
) error {
	return alltoallvMPI(c, INT64, send, sendCounts, sendDisp,
		recv, recvCounts, recvDisp)
}

func (c *MPIComm) AllreduceSumFloat64(in, out []float64) error {
	if len(in) != len(out) {
		return g_error.Collective("Allreduce", fmt.Errorf("Allreduce input "+
			"has length %d, but output has length %d.", len(in), len(out)))
	}
	if len(in) == 0 {
		return c.Barrier()
	}

	sendPtr := unsafe.Pointer(&in[0])
	if &in[0] == &out[0] {
		sendPtr = C.get_MPI_IN_PLACE()
	}
	return processError("Allreduce", C.MPI_Allreduce(sendPtr,
		unsafe.Pointer(&out[0]), C.int(len(out)), FLOAT64, SUM, c.comm))
}

func (c *MPIComm) BcastFloat64(buf []float64, root int) error {
	if len(buf) == 0 {
		return c.Barrier()
	}
	return processError("Bcast", C.MPI_Bcast(unsafe.Pointer(&buf[0]),
		C.int(len(buf)), FLOAT64, C.int(root), c.comm))
}
