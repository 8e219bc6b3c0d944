package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hrtree/internal/record"
)

var (
	// ErrInvalidArgument is returned when an argument is invalid.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNegativeExtent is returned when an extent component is negative or NaN.
	ErrNegativeExtent = fmt.Errorf("%w: negative extent", ErrInvalidArgument)

	// ErrNonFinite is returned when a coordinate or extent is NaN or infinite.
	ErrNonFinite = fmt.Errorf("%w: non-finite coordinate", ErrInvalidArgument)

	// ErrInvalidK is returned when k is negative or exceeds the number of live objects.
	ErrInvalidK = fmt.Errorf("%w: k out of range", ErrInvalidArgument)

	// ErrAlreadyExists is returned when inserting an id that is already live.
	ErrAlreadyExists = record.ErrAlreadyExists

	// ErrNotFound is returned when erasing an id that is not live.
	ErrNotFound = record.ErrNotFound

	// ErrCorrupted is returned when the record file cannot be read or written.
	ErrCorrupted = record.ErrCorrupted
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// tree dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidArgument }
