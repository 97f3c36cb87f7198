package lib

import (
	"strings"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

// RunMode indicates whether workers are goroutines in one process or
// separate MPI processes.
type RunMode int
const (
	LocalMode RunMode = iota
	MPIMode
)

// CheckStrictness indicates how functions related to the "check" mode
// should behave when it encounters an error.
type CheckStrictness int
const (
	CrashOnError CheckStrictness = iota
	WarnOnError
)

// InitialCondition selects how particles are placed at iteration 0.
type InitialCondition int
const (
	LatticeIC InitialCondition = iota
	UniformIC
)

// FieldPreset selects the analytic velocity field.
type FieldPreset int
const (
	UniformField FieldPreset = iota
	ABCField
	TaylorGreenField
)

// Precision selects the floating point type the field is stored in.
type Precision int
const (
	Double Precision = iota
	Single
)

// BasisKind selects the interpolation kernel.
type BasisKind int
const (
	LagrangeBasis BasisKind = iota
	SplineBasis
)

func parseBasis(s string) (BasisKind, error) {
	switch strings.ToLower(s) {
	case "lagrange": return LagrangeBasis, nil
	case "spline": return SplineBasis, nil
	}
	return 0, g_error.Config("Basis must be 'lagrange' or 'spline', but "+
		"is '%s'.", s)
}

func parseInitialCondition(s string) (InitialCondition, error) {
	switch strings.ToLower(s) {
	case "lattice": return LatticeIC, nil
	case "uniform": return UniformIC, nil
	}
	return 0, g_error.Config("InitialCondition must be 'lattice' or "+
		"'uniform', but is '%s'.", s)
}

func parseFieldPreset(s string) (FieldPreset, error) {
	switch strings.ToLower(s) {
	case "uniform": return UniformField, nil
	case "abc": return ABCField, nil
	case "taylor-green": return TaylorGreenField, nil
	}
	return 0, g_error.Config("Field must be 'uniform', 'abc', or "+
		"'taylor-green', but is '%s'.", s)
}

func parsePrecision(s string) (Precision, error) {
	switch strings.ToLower(s) {
	case "double": return Double, nil
	case "single": return Single, nil
	}
	return 0, g_error.Config("Precision must be 'single' or 'double', but "+
		"is '%s'.", s)
}
