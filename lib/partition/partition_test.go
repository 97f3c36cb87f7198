package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

func TestNew(t *testing.T) {
	tests := []struct {
		n, p  int
		valid bool
	}{
		{10, 2, true}, {0, 1, true}, {1, 4, true},
		{10, 0, false}, {10, -1, false}, {-1, 3, false},
	}

	for i := range tests {
		_, err := New(tests[i].n, tests[i].p)
		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected New(%d, %d) to succeed, got '%s'.",
				i, tests[i].n, tests[i].p, err.Error())
		} else if !tests[i].valid {
			if err == nil {
				t.Errorf("%d) Expected New(%d, %d) to fail.",
					i, tests[i].n, tests[i].p)
			} else if g_error.Kind(err) != g_error.ConfigKind {
				t.Errorf("%d) Expected a configuration error, got %s.",
					i, g_error.Kind(err))
			}
		}
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		n, p           int
		offsets, sizes []int
	}{
		{10, 2, []int{0, 5}, []int{5, 5}},
		{10, 3, []int{0, 3, 6}, []int{3, 3, 4}},
		{11, 3, []int{0, 3, 7}, []int{3, 4, 4}},
		{7, 7, []int{0, 1, 2, 3, 4, 5, 6}, []int{1, 1, 1, 1, 1, 1, 1}},
		{2, 4, []int{0, 1, 2, 2}, []int{1, 1, 0, 0}},
		{0, 2, []int{0, 0}, []int{0, 0}},
		{5, 1, []int{0}, []int{5}},
	}

	for i := range tests {
		idx, err := New(tests[i].n, tests[i].p)
		require.NoError(t, err)
		for r := 0; r < tests[i].p; r++ {
			offset, size := idx.Interval(r)
			if offset != tests[i].offsets[r] || size != tests[i].sizes[r] {
				t.Errorf("%d) Expected Interval(%d) of (%d, %d) to be "+
					"(%d, %d), got (%d, %d).", i, r, tests[i].n, tests[i].p,
					tests[i].offsets[r], tests[i].sizes[r], offset, size)
			}
		}
	}
}

func TestTiling(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for p := 1; p <= 12; p++ {
			idx, err := New(n, p)
			require.NoError(t, err)

			next := 0
			min, max := n+1, -1
			for r := 0; r < p; r++ {
				offset, size := idx.Interval(r)
				if size > 0 {
					if offset != next {
						t.Fatalf("(%d, %d) Expected worker %d to start at "+
							"%d, got %d.", n, p, r, next, offset)
					}
					next += size
				}
				if size < min { min = size }
				if size > max { max = size }

				for c := offset; c < offset+size; c++ {
					if owner := idx.Owner(c); owner != r {
						t.Fatalf("(%d, %d) Expected Owner(%d) = %d, got %d.",
							n, p, c, r, owner)
					}
				}
			}

			if next != n {
				t.Errorf("(%d, %d) Expected intervals to cover %d cells, "+
					"got %d.", n, p, n, next)
			}
			if n > p && max-min > 1 {
				t.Errorf("(%d, %d) Expected sizes to differ by at most one, "+
					"got %d and %d.", n, p, min, max)
			}
		}
	}
}

func TestOwnerPanics(t *testing.T) {
	idx, err := New(10, 2)
	require.NoError(t, err)
	assert.Panics(t, func() { idx.Owner(10) })
	assert.Panics(t, func() { idx.Owner(-1) })
	assert.Panics(t, func() { idx.Interval(2) })
}

func TestSpatial(t *testing.T) {
	idx, err := New(10, 2)
	require.NoError(t, err)
	s, err := NewSpatial(idx, 0, 10)
	require.NoError(t, err)

	assert.Equal(t, 1.0, s.Dx())

	tests := []struct {
		x           float64
		cell, owner int
	}{
		{0, 0, 0}, {4.5, 4, 0}, {4.999, 4, 0}, {5, 5, 1}, {5.5, 5, 1},
		{9.999, 9, 1}, {10, 0, 0}, {-0.5, 9, 1}, {14.5, 4, 0},
	}
	for i := range tests {
		assert.Equal(t, tests[i].cell, s.Cell(tests[i].x), "%d) Cell(%g)",
			i, tests[i].x)
		assert.Equal(t, tests[i].owner, s.Owner(tests[i].x), "%d) Owner(%g)",
			i, tests[i].x)
	}

	assert.Equal(t, 1, s.OwnerOf([]float64{5.5, 0, 0}))

	low, high := s.Limits(1)
	assert.Equal(t, 5.0, low)
	assert.Equal(t, 10.0, high)

	_, err = NewSpatial(idx, 3, 10)
	assert.Error(t, err)
	_, err = NewSpatial(idx, 0, 0)
	assert.Error(t, err)
}
