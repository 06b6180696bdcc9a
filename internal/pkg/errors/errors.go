package errors

import "errors"

var (
	// ErrSourceNotFound is returned when a referenced storage object does not exist.
	// Ingestion fails fast on it: no chunk is written for a missing source.
	ErrSourceNotFound = errors.New("source object not found")
	// ErrInvalidVectorShape is returned when a similarity operand is not a
	// one-dimensional numeric vector.
	ErrInvalidVectorShape = errors.New("invalid vector shape")
	// ErrDegenerateVector is returned when a similarity operand has zero magnitude.
	ErrDegenerateVector = errors.New("degenerate vector")
)
