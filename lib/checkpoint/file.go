package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	// MagicNumber is an arbitrary number at the start of all dataset files
	// which should help identify when the code is run on something else by
	// accident.
	MagicNumber = 0x7ace5f0d
	// ReverseMagicNumber is the magic number if read on a machine with
	// flipped endianness.
	ReverseMagicNumber = 0x0d5fce7a
	Version = 1
)

// datasetFile is a single dataset on disk. The file starts with a header:
//
//   uint32  MagicNumber
//   uint32  Version
//   uint32  number of dimensions per slab, d
//   int64   d slab dimensions
//
// followed by any number of slab records:
//
//   int64   slab index
//   int64   payload length in bytes
//   []byte  payload (see encodeFloat64s)
//
// Records are only ever appended, so the order of slabs in the file is the
// order they were written in.
type datasetFile struct {
	fname string
	order binary.ByteOrder
	shape []int64
	// offsets maps slab index to the offset of its payload.
	offsets map[int64]int64
	lengths map[int64]int64
	end     int64
}

// createDatasetFile writes an empty dataset file with the given slab shape.
func createDatasetFile(fname string, shape []int64) error {
	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil { return err }
	defer f.Close()

	order := binary.LittleEndian
	hd := []interface{}{
		uint32(MagicNumber), uint32(Version), uint32(len(shape)), shape,
	}
	for _, x := range hd {
		if err := binary.Write(f, order, x); err != nil { return err }
	}
	return f.Sync()
}

// openDatasetFile reads the header of a dataset file and indexes its slabs.
func openDatasetFile(fname string) (*datasetFile, error) {
	f, err := os.Open(fname)
	if err != nil { return nil, err }
	defer f.Close()

	order, err := checkFile(fname, f)
	if err != nil { return nil, err }

	var ndim uint32
	if err := binary.Read(f, order, &ndim); err != nil { return nil, err }
	if ndim > 16 {
		return nil, fmt.Errorf("%s claims to have %d dimensions. The header "+
			"is probably corrupted.", fname, ndim)
	}
	shape := make([]int64, ndim)
	if err := binary.Read(f, order, shape); err != nil { return nil, err }

	df := &datasetFile{
		fname: fname, order: order, shape: shape,
		offsets: map[int64]int64{}, lengths: map[int64]int64{},
		end: int64(12 + 8*ndim),
	}

	for {
		var rec [2]int64
		err := binary.Read(f, order, &rec)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s has a truncated slab record after "+
				"byte %d: %w", fname, df.end, err)
		}

		slab, n := rec[0], rec[1]
		if _, dup := df.offsets[slab]; dup {
			return nil, fmt.Errorf("%s contains slab %d twice.", fname, slab)
		}
		df.offsets[slab], df.lengths[slab] = df.end + 16, n
		df.end += 16 + n

		if _, err := f.Seek(df.end, io.SeekStart); err != nil {
			return nil, err
		}
	}

	info, err := f.Stat()
	if err != nil { return nil, err }
	if info.Size() != df.end {
		return nil, fmt.Errorf("%s is %d bytes long, but its slab records "+
			"end at byte %d.", fname, info.Size(), df.end)
	}

	return df, nil
}

// slabSize returns the number of values in a single slab.
func (df *datasetFile) slabSize() int64 {
	n := int64(1)
	for _, x := range df.shape { n *= x }
	return n
}

func (df *datasetFile) has(slab int64) bool {
	_, ok := df.offsets[slab]
	return ok
}

// appendSlab appends a slab record. The caller must check that the slab
// hasn't already been written.
func (df *datasetFile) appendSlab(slab int64, x []float64) error {
	payload, err := encodeFloat64s(x, nil)
	if err != nil { return err }

	f, err := os.OpenFile(df.fname, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil { return err }
	defer f.Close()

	rec := [2]int64{ slab, int64(len(payload)) }
	if err := binary.Write(f, df.order, &rec); err != nil { return err }
	if _, err := f.Write(payload); err != nil { return err }
	if err := f.Sync(); err != nil { return err }

	df.offsets[slab], df.lengths[slab] = df.end + 16, int64(len(payload))
	df.end += 16 + int64(len(payload))
	return nil
}

// readSlab reads an indexed slab into out.
func (df *datasetFile) readSlab(slab int64, out []float64) error {
	f, err := os.Open(df.fname)
	if err != nil { return err }
	defer f.Close()

	payload := make([]byte, df.lengths[slab])
	if _, err := f.ReadAt(payload, df.offsets[slab]); err != nil {
		return err
	}
	return decodeFloat64s(payload, out)
}

// checkFile reads in the file's magic number and version number and makes
// sure that this code can actually read it. If it can, the byte order is
// returned. Otherwise an error is returned.
func checkFile(fname string, f io.Reader) (binary.ByteOrder, error) {
	var magicNumber, version uint32

	order := binary.ByteOrder(binary.LittleEndian)
	err := binary.Read(f, order, &magicNumber)
	if err != nil { return nil, err }

	switch magicNumber {
	case MagicNumber:
	case ReverseMagicNumber: order = binary.BigEndian
	default:
		return order, fmt.Errorf("%s is not a checkpoint dataset. All "+
			"datasets begin with either the 32-bit integer %x or %x. This "+
			"file begins with %x.", fname, MagicNumber, ReverseMagicNumber,
			magicNumber)
	}

	err = binary.Read(f, order, &version)
	if err != nil { return nil, err }
	if version > Version {
		return order, fmt.Errorf("The file %s was created with dataset "+
			"version %d, but this code only reads versions up to %d.",
			fname, version, Version)
	}

	return order, nil
}
