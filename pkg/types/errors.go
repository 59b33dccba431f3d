package types

import "errors"

// Error categories surfaced to callers. Concrete errors wrap one of these so
// callers can classify failures with errors.Is.
var (
	// ErrInvalidInput covers a missing required field, a disallowed uploader
	// role, a disallowed file extension, an oversized upload, or an
	// unconfirmed restore. No state is mutated.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidArchive is returned when a restore source lacks the database
	// entry or carries an unreadable database. No state is mutated.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrStorage wraps filesystem and database failures.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned when a song or one of its files does not exist.
	ErrNotFound = errors.New("not found")
)

// Catalog lifecycle errors.
var (
	ErrCatalogDetached = errors.New("catalog is detached")
	ErrAlreadyAttached = errors.New("catalog is already attached")
)
