package record

import "errors"

var (
	// ErrCorrupted is returned when a physical read or write fails or when the
	// bytes on disk cannot describe a valid store.
	ErrCorrupted = errors.New("store corrupted")

	// ErrAlreadyExists is returned when creating a store over an existing path.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when opening a store whose path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLocked is returned when another handle already owns the store file.
	ErrLocked = errors.New("store is locked by another handle")
)
