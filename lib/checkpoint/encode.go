package checkpoint

import (
	"fmt"
	"math"

	"github.com/DataDog/zstd"
)

// encodeFloat64s losslessly compresses x. The bits of each value are split
// into eight one-byte columns, least significant first, and the columns are
// laid end to end before zstd sees them. The high-order bytes of neighboring
// values (sign, exponent, and leading mantissa bits) are usually similar, so
// they compress to almost nothing.
func encodeFloat64s(x []float64, buf []byte) ([]byte, error) {
	n := len(x)
	b := make([]byte, 8*n)
	for col := 0; col < 8; col++ {
		floatToByte(x, b[col*n: (col+1)*n], col)
	}
	return zstd.CompressLevel(buf, b, 1)
}

// decodeFloat64s is the inverse of encodeFloat64s. It fills out, which must
// have the same length as the array that was encoded.
func decodeFloat64s(payload []byte, out []float64) error {
	b, err := zstd.Decompress(nil, payload)
	if err != nil { return err }

	n := len(out)
	if len(b) != 8*n {
		return fmt.Errorf("Slab decompresses to %d bytes, but %d values "+
			"were expected.", len(b), n)
	}

	bits := make([]uint64, n)
	for col := 0; col < 8; col++ {
		byteToBits(b[col*n: (col+1)*n], bits, col)
	}
	for i := range out {
		out[i] = math.Float64frombits(bits[i])
	}
	return nil
}

// floatToByte transfers a one-byte "column" of the bits of x to b. The bytes
// are indexed from least to most significant.
func floatToByte(x []float64, b []byte, col int) {
	for i := range x {
		b[i] = byte((math.Float64bits(x[i]) >> (8*col)) & 0xff)
	}
}

// byteToBits adds a one-byte column to bits.
func byteToBits(b []byte, bits []uint64, col int) {
	for i := range bits {
		bits[i] |= uint64(b[i]) << (8*col)
	}
}
