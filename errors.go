package revsearch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/revsearch/internal/metalog"
	"github.com/hupe1980/revsearch/internal/searcher"
	"github.com/hupe1980/revsearch/internal/vectorlog"
)

var (
	// ErrIO wraps failures of the underlying files.
	ErrIO = errors.New("i/o error")

	// ErrEncoding is returned when a metadata record cannot be encoded or decoded.
	ErrEncoding = errors.New("encoding error")

	// ErrHeaderMismatch is returned when a store is reopened with a different
	// dimension or scale.
	ErrHeaderMismatch = errors.New("header mismatch")

	// ErrCorruptHeader is returned when the vector log header is unreadable.
	ErrCorruptHeader = errors.New("corrupt header")

	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrInvalidArgument is returned for malformed requests, e.g. a batch
	// whose vector and review counts differ.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a requested id is not stored.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrLocked is returned when another process holds the store.
	ErrLocked = errors.New("store locked by another process")

	// ErrInconsistent is returned when the vector and metadata logs disagree
	// and could not be reconciled.
	ErrInconsistent = errors.New("vector and metadata logs are inconsistent")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// IsClientError reports whether err was caused by the caller's input rather
// than by the store.
func IsClientError(err error) bool {
	var dm *ErrDimensionMismatch
	return errors.As(err, &dm) ||
		errors.Is(err, ErrInvalidK) ||
		errors.Is(err, ErrInvalidArgument)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var vdm *vectorlog.ErrDimensionMismatch
	if errors.As(err, &vdm) {
		return &ErrDimensionMismatch{Expected: vdm.Expected, Actual: vdm.Actual, cause: err}
	}
	var sdm *searcher.ErrDimensionMismatch
	if errors.As(err, &sdm) {
		return &ErrDimensionMismatch{Expected: sdm.Expected, Actual: sdm.Actual, cause: err}
	}

	switch {
	case errors.Is(err, searcher.ErrInvalidK):
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	case errors.Is(err, metalog.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, vectorlog.ErrClosed), errors.Is(err, metalog.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, vectorlog.ErrLocked):
		return fmt.Errorf("%w: %w", ErrLocked, err)
	case errors.Is(err, vectorlog.ErrHeaderMismatch):
		return fmt.Errorf("%w: %w", ErrHeaderMismatch, err)
	case errors.Is(err, vectorlog.ErrCorruptHeader):
		return fmt.Errorf("%w: %w", ErrCorruptHeader, err)
	case errors.Is(err, metalog.ErrEncoding):
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	case errors.Is(err, metalog.ErrTornTail):
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	case errors.Is(err, vectorlog.ErrIO), errors.Is(err, metalog.ErrIO):
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return err
}
