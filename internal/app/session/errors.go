package session

import "errors"

var (
	// ErrInvalidInput rejects an ingest call before any state is touched.
	ErrInvalidInput = errors.New("session: invalid input")

	// ErrStoreUnavailable wraps durable-store failures. Calls failing with it
	// made no partial commit.
	ErrStoreUnavailable = errors.New("session: store unavailable")
)
