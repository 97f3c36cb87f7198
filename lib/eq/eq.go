/*package eq is a simple package for telling whether two arrays are equal to
one another.*/
package eq

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Slices returns true if two arrays of the same comparable type are the same
// and false otherwise.
func Slices[T comparable](x, y []T) bool {
	if len(x) != len(y) { return false }
	for i := range x {
		if x[i] != y[i] { return false }
	}
	return true
}

// Ints returns true if two []int arrays are the same and false otherwise.
func Ints(x, y []int) bool { return Slices(x, y) }

// Int64s returns true if two []int64 arrays are the same and false otherwise.
func Int64s(x, y []int64) bool { return Slices(x, y) }

// Strings returns true if two []string arrays are the same and false otherwise.
func Strings(x, y []string) bool { return Slices(x, y) }

// Float64s returns true if two []float64 arrays are the same and false
// otherwise.
func Float64s(x, y []float64) bool { return Slices(x, y) }

// Vec64s returns true if two [][3]float64 arrays are the same and false
// otherwise.
func Vec64s(x, y [][3]float64) bool { return Slices(x, y) }

// Float64sEps returns true if two []float64 arrays are within eps of one
// another and false otherwise.
func Float64sEps(x, y []float64, eps float64) bool {
	if len(x) != len(y) { return false }
	return floats.EqualApprox(x, y, eps)
}

// Periodic returns true if x and y are within eps of one another once
// wrapped into a periodic domain of width L.
func Periodic(x, y, L, eps float64) bool {
	d := math.Mod(math.Abs(x - y), L)
	return d <= eps || L - d <= eps
}
