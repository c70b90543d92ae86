package livestate

import "errors"

var (
	// ErrNotFound is returned when no live state exists for an event.
	ErrNotFound = errors.New("live state not found")

	// ErrUnavailable is returned when the cache or the durable store cannot
	// be reached. Callers must not broadcast a change that failed with this
	// error: no write, no broadcast.
	ErrUnavailable = errors.New("state store unavailable")
)
