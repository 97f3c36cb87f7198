package particles

import (
	"fmt"
	"math"
)

// Partition reorders n records so that every record satisfying pred comes
// before every record that doesn't and returns the number that do. pred(i)
// and swap(i, j) both refer to the current position of a record, so pred
// must read from the same arrays that swap exchanges. swap is called once for
// each exchange that actually moves data, which lets callers keep any number
// of parallel arrays in sync.
func Partition(n int, pred func(i int) bool, swap func(i, j int)) int {
	insert := 0
	for insert < n && pred(insert) {
		insert++
	}

	for i := insert + 1; i < n; i++ {
		if pred(i) {
			swap(i, insert)
			insert++
		}
	}

	return insert
}

// PartitionBuckets sorts n records into nBuckets contiguous runs by the
// bucket returned by bucketOf(i). It returns the number of records in each
// bucket and the offset of each run. offsets has length nBuckets+1, so bucket
// b occupies [offsets[b], offsets[b+1]). Records within a bucket are not in
// any particular order.
//
// The buckets are split recursively in halves, with one pass of Partition per
// split, so each record is visited O(log nBuckets) times.
func PartitionBuckets(
	n, nBuckets int, bucketOf func(i int) int, swap func(i, j int),
) (sizes, offsets []int) {
	if nBuckets < 0 || (nBuckets == 0 && n > 0) {
		panic(fmt.Sprintf("Can't sort %d records into %d buckets.",
			n, nBuckets))
	}

	sizes = make([]int, nBuckets)
	splitBuckets(0, n, 0, nBuckets, bucketOf, swap, sizes)

	offsets = make([]int, nBuckets + 1)
	for b := range sizes {
		offsets[b+1] = offsets[b] + sizes[b]
	}
	return sizes, offsets
}

// splitBuckets sorts the records in [lo, hi), all of which are in buckets
// [first, last), and writes the bucket sizes.
func splitBuckets(
	lo, hi, first, last int, bucketOf func(i int) int, swap func(i, j int),
	sizes []int,
) {
	switch {
	case hi == lo:
		return
	case last - first == 1:
		for i := lo; i < hi; i++ {
			checkBucket(bucketOf(i), i, first, last)
		}
		sizes[first] = hi - lo
		return
	case hi - lo == 1:
		b := bucketOf(lo)
		checkBucket(b, lo, first, last)
		sizes[b]++
		return
	}

	mid := first + (last - first)/2 - 1
	k := Partition(hi - lo,
		func(i int) bool { return bucketOf(lo + i) <= mid },
		func(i, j int) { swap(lo + i, lo + j) },
	)

	splitBuckets(lo, lo + k, first, mid + 1, bucketOf, swap, sizes)
	splitBuckets(lo + k, hi, mid + 1, last, bucketOf, swap, sizes)
}

func checkBucket(b, i, first, last int) {
	if b < first || b >= last {
		panic(fmt.Sprintf("Record %d is in bucket %d, which is outside "+
			"[%d, %d).", i, b, first, last))
	}
}

// round rounds a float to the nearest integer.
func round(x float64) int {
	low, high := math.Floor(x), math.Ceil(x)
	if x - low < high - x {
		return int(low)
	} else {
		return int(high)
	}
}
