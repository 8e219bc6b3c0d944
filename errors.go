package hrtree

import (
	"errors"

	"github.com/hupe1980/hrtree/internal/engine"
	"github.com/hupe1980/hrtree/internal/record"
)

var (
	// ErrInvalidArgument is the parent of every argument validation error.
	ErrInvalidArgument = engine.ErrInvalidArgument

	// ErrNegativeExtent is returned when an extent component is negative or NaN.
	ErrNegativeExtent = engine.ErrNegativeExtent

	// ErrNonFinite is returned when a coordinate or extent is NaN or infinite.
	ErrNonFinite = engine.ErrNonFinite

	// ErrInvalidK is returned when k is negative or exceeds Len.
	ErrInvalidK = engine.ErrInvalidK

	// ErrAlreadyExists is returned when inserting a live id or creating a
	// store over an existing path.
	ErrAlreadyExists = engine.ErrAlreadyExists

	// ErrNotFound is returned when erasing an id that is not live or opening
	// a missing path.
	ErrNotFound = engine.ErrNotFound

	// ErrCorrupted is returned when the store file or a backup cannot be
	// read, written or validated.
	ErrCorrupted = engine.ErrCorrupted

	// ErrLocked is returned when another handle owns the store file.
	ErrLocked = record.ErrLocked

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("store closed")
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// store dimension. It unwraps to ErrInvalidArgument.
type ErrDimensionMismatch = engine.ErrDimensionMismatch
