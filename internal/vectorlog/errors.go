package vectorlog

import (
	"errors"
	"fmt"
)

var (
	// ErrIO wraps every failure of the underlying file.
	ErrIO = errors.New("vectorlog: i/o error")

	// ErrHeaderMismatch is returned when the persisted dimension or scale
	// differs from the requested one.
	ErrHeaderMismatch = errors.New("vectorlog: header mismatch")

	// ErrCorruptHeader is returned when the sidecar header cannot be decoded.
	ErrCorruptHeader = errors.New("vectorlog: corrupt header")

	// ErrLocked is returned when another process holds the log.
	ErrLocked = errors.New("vectorlog: locked by another process")

	// ErrClosed is returned for operations on a closed log.
	ErrClosed = errors.New("vectorlog: closed")
)

// ErrDimensionMismatch is returned when a vector does not have the log's dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorlog: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
