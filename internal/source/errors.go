package source

import "errors"

// Domain errors for the source package.
var (
	// ErrSourceNotFound is returned when a source id does not exist.
	ErrSourceNotFound = errors.New("source: not found")

	// ErrInvalidSource is returned when an upsert payload fails validation.
	ErrInvalidSource = errors.New("source: invalid")
)
