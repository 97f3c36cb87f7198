/*package stats computes run diagnostics across workers and appends them to a
CSV file.*/
package stats

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/phil-mansfield/tracers/lib/mpi"
)

// Row is one line of the diagnostics file.
type Row struct {
	Iteration int     `csv:"iteration"`
	Time      float64 `csv:"time"`
	Count     int64   `csv:"count"`
	MeanSpeed float64 `csv:"mean_speed"`
	MaxSpeed  float64 `csv:"max_speed"`
}

// Collect combines every worker's particle speeds into a Row. It is
// collective, and every worker gets the same Row back.
func Collect(
	comm mpi.Comm, iteration int, time float64, speeds []float64,
) (Row, error) {
	p, r := comm.Size(), comm.Rank()

	// Each worker fills its own column of three rows: count, mean, max.
	buf := make([]float64, 3*p)
	if len(speeds) > 0 {
		buf[r] = float64(len(speeds))
		buf[p + r] = stat.Mean(speeds, nil)
		buf[2*p + r] = floats.Max(speeds)
	}
	if err := comm.AllreduceSumFloat64(buf, buf); err != nil {
		return Row{}, err
	}

	counts, means, maxes := buf[:p], buf[p: 2*p], buf[2*p:]
	row := Row{
		Iteration: iteration, Time: time,
		Count: int64(floats.Sum(counts)),
	}
	if row.Count > 0 {
		row.MeanSpeed = stat.Mean(means, counts)
		row.MaxSpeed = floats.Max(maxes)
	}
	return row, nil
}

// Writer appends Rows to a CSV file. A nil *Writer discards everything.
type Writer struct {
	f             *os.File
	headerWritten bool
}

// NewWriter opens fname for writing. If appendTo is true and the file
// already exists, rows are added to the end of it without a new header.
// Otherwise the file is truncated. An empty fname gives a nil Writer.
func NewWriter(fname string, appendTo bool) (*Writer, error) {
	if fname == "" {
		return nil, nil
	}

	w := &Writer{}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendTo {
		if info, err := os.Stat(fname); err == nil && info.Size() > 0 {
			flags = os.O_WRONLY | os.O_APPEND
			w.headerWritten = true
		}
	}

	f, err := os.OpenFile(fname, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fname, err)
	}
	w.f = f
	return w, nil
}

// Write appends a row.
func (w *Writer) Write(row Row) error {
	if w == nil {
		return nil
	}

	records := []Row{row}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.f); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		w.headerWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, w.f); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}
	return nil
}

// Close closes the file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	return w.f.Close()
}
