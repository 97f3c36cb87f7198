/*package error contains the error types used by the tracer library and the
functions the driver uses to turn them into fatal exits.

Library code never exits. It returns one of three kinds of error:

  ConfigError     - something the user can fix: a bad integration order, a
                    checkpoint slab that was never written, an invalid grid.
  InvariantError  - internal state is corrupted, e.g. a particle that is still
                    outside the box after wrap correction or a stencil that
                    reaches past the halo. Usually means dt is too large.
  CollectiveError - a collective operation failed. Every worker is now in an
                    undefined state, so the whole group has to stop.

The driver passes configuration errors to External and everything else to
Internal.
*/
package error

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

// ErrorKind classifies an error returned by the library.
type ErrorKind int

const (
	UnknownKind ErrorKind = iota
	ConfigKind
	InvariantKind
	CollectiveKind
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigKind:
		return "configuration"
	case InvariantKind:
		return "invariant"
	case CollectiveKind:
		return "collective"
	}
	return "unknown"
}

// ConfigError is an error that a user could reasonably be expected to fix
// through changes in configuration or input data.
type ConfigError struct {
	Msg string // Full message, including the text of Err.
	Err error
}

func (e *ConfigError) Error() string { return e.Msg }
func (e *ConfigError) Unwrap() error { return e.Err }

// InvariantError signals that the state of the simulation has been corrupted
// upstream. It is never recovered from.
type InvariantError struct {
	Msg string
	Err error
}

func (e *InvariantError) Error() string { return e.Msg }
func (e *InvariantError) Unwrap() error { return e.Err }

// CollectiveError wraps a failure inside a collective operation.
type CollectiveError struct {
	Op  string
	Err error
}

func (e *CollectiveError) Error() string {
	return joinMsg(fmt.Sprintf("Collective operation %s failed.", e.Op), e.Err)
}
func (e *CollectiveError) Unwrap() error { return e.Err }

func joinMsg(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + " " + err.Error()
}

// Config creates a ConfigError. It has the same signature as fmt.Errorf and
// will wrap the last argument if it is an error and the format ends in %w.
func Config(format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	return &ConfigError{err.Error(), errors.Unwrap(err)}
}

// Invariant creates an InvariantError. It has the same signature as
// fmt.Errorf.
func Invariant(format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	return &InvariantError{err.Error(), errors.Unwrap(err)}
}

// Collective wraps err as a failure of the named collective operation. A nil
// err gives a nil error and an err that is already a CollectiveError is
// returned unchanged.
func Collective(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollectiveError
	if errors.As(err, &ce) {
		return err
	}
	return &CollectiveError{op, err}
}

// Kind returns the kind of the first library error in err's chain.
func Kind(err error) ErrorKind {
	var (
		ce *ConfigError
		ie *InvariantError
		co *CollectiveError
	)
	switch {
	case err == nil:
		return UnknownKind
	case errors.As(err, &ce):
		return ConfigKind
	case errors.As(err, &ie):
		return InvariantKind
	case errors.As(err, &co):
		return CollectiveKind
	}
	return UnknownKind
}

// exit is swapped out by tests.
var exit = os.Exit

// External reports an error to stderr and kills the program. It should be
// used when an error is something a user could reasonably be expected to fix
// through changes in configuration/data/environment. It has the same
// signature as the standard fmt.*printf() functions.
func External(format string, a ...interface{}) {
	slog.Error("Tracers exited early with the following error:\n" +
		fmt.Sprintf(format, a...))
	exit(1)
}

// Internal reports an error along with a stack trace and kills the program.
// It should be used when the error requires a code dive to fix. It has the
// same signature as the standard fmt.*printf() functions.
func Internal(format string, a ...interface{}) {
	slog.Error("Tracers exited early with the following error:\n"+
		fmt.Sprintf(format, a...), "stack", string(debug.Stack()))
	exit(1)
}

// Fatal reports err with Report and kills the program. It does nothing if err
// is nil.
func Fatal(err error) {
	if err == nil {
		return
	}
	Report(err)
	exit(1)
}

// Report logs err without exiting. Configuration errors are logged the way
// External logs them and everything else gets a stack trace, like Internal.
func Report(err error) {
	if err == nil {
		return
	}
	msg := "Tracers exited early with the following error:\n"
	switch Kind(err) {
	case ConfigKind:
		slog.Error(msg + err.Error())
	default:
		slog.Error(msg+fmt.Sprintf("%s (%s error)", err.Error(), Kind(err)),
			"stack", string(debug.Stack()))
	}
}
