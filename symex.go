package symex

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths.
const (
	WidthBool    = 1
	Width8       = 8
	Width16      = 16
	Width32      = 32
	Width64      = 64
	PointerWidth = Width64
)

var (
	// ErrNoPathAvailable is returned by ExecuteNextPath when path storage is empty.
	ErrNoPathAvailable = errors.New("symex: no path available")

	// ErrNoEntryPoint is the cause of the error returned when the program
	// does not define its entry point function.
	ErrNoEntryPoint = errors.New("the program has no entry point")
)

// UnsupportedOperationError is returned when the engine encounters a
// construct it cannot handle. It is recoverable at the tool level and should
// be reported as a tool limitation rather than a program error.
type UnsupportedOperationError struct {
	Reason string
	Err    error
}

// Error returns the error message.
func (e *UnsupportedOperationError) Error() string {
	return "unsupported operation: " + e.Reason
}

// Cause returns the underlying error, if any.
func (e *UnsupportedOperationError) Cause() error { return e.Err }

// Unwrap returns the underlying error, if any.
func (e *UnsupportedOperationError) Unwrap() error { return e.Err }

func unsupported(format string, args ...interface{}) error {
	return &UnsupportedOperationError{Reason: fmt.Sprintf(format, args...)}
}

// IncorrectProgramError is returned when the goto program violates a
// structural rule that can only be detected during execution.
type IncorrectProgramError struct {
	Source Source
	Reason string
}

// Error returns the error message.
func (e *IncorrectProgramError) Error() string {
	return fmt.Sprintf("incorrect goto program at %s: %s", e.Source, e.Reason)
}

// InvariantError is the panic value raised when an internal consistency
// check fails. It signals a malformed program or an engine bug.
type InvariantError struct {
	Message string
}

// Error returns the error message.
func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Message
}

// IsUnsupported returns true if err was caused by an unsupported operation.
func IsUnsupported(err error) bool {
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}

// invariant panics with an *InvariantError if condition is false.
func invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
	}
}
