package session

import "errors"

var (
	// ErrMalformedRequest marks input the engine rejects without retrying.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrNotFound means no session exists for the id.
	ErrNotFound = errors.New("session not found")
	// ErrStorageUnavailable wraps transient backend failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConflict is returned by optimistic backends when a concurrent write won.
	ErrConflict = errors.New("concurrent update conflict")
)
