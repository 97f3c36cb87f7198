package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/tracers/lib/mpi"
)

func TestCollect(t *testing.T) {
	speeds := [][]float64{
		{1, 2, 3},
		{},
		{10},
	}

	rows := make([]Row, len(speeds))
	var mu sync.Mutex
	err := mpi.NewWorld(len(speeds)).Run(func(c mpi.Comm) error {
		row, err := Collect(c, 7, 3.5, speeds[c.Rank()])
		if err != nil { return err }
		mu.Lock()
		rows[c.Rank()] = row
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	expected := Row{
		Iteration: 7, Time: 3.5, Count: 4, MeanSpeed: 4, MaxSpeed: 10,
	}
	for i := range rows {
		if rows[i].Iteration != expected.Iteration ||
			rows[i].Count != expected.Count {
			t.Errorf("%d) Expected %+v, got %+v.", i, expected, rows[i])
		}
		assert.InDelta(t, expected.MeanSpeed, rows[i].MeanSpeed, 1e-12)
		assert.InDelta(t, expected.MaxSpeed, rows[i].MaxSpeed, 1e-12)
	}
}

func TestCollectEmpty(t *testing.T) {
	row, err := Collect(mpi.NewWorld(1).Comm(0), 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Row{}, row)
}

func TestWriter(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "stats.csv")

	w, err := NewWriter(fname, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(Row{0, 0, 8, 1.5, 2}))
	require.NoError(t, w.Write(Row{10, 1, 8, 1.25, 2.5}))
	require.NoError(t, w.Close())

	// A restart keeps what was already there.
	w, err = NewWriter(fname, true)
	require.NoError(t, err)
	require.NoError(t, w.Write(Row{20, 2, 8, 1, 3}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t,
		"iteration,time,count,mean_speed,max_speed\n"+
			"0,0,8,1.5,2\n"+
			"10,1,8,1.25,2.5\n"+
			"20,2,8,1,3\n",
		string(data))

	var nilWriter *Writer
	assert.NoError(t, nilWriter.Write(Row{}))
	assert.NoError(t, nilWriter.Close())

	w, err = NewWriter("", false)
	assert.NoError(t, err)
	assert.Nil(t, w)
}
