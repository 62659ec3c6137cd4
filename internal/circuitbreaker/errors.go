package circuitbreaker

import "errors"

var (
	// ErrConfig marks an invalid or duplicate breaker registration. It is a
	// startup failure, never a per-request one.
	ErrConfig = errors.New("circuit breaker configuration error")

	// ErrNotFound is returned when no breaker is registered under a name.
	ErrNotFound = errors.New("circuit breaker not found")

	// ErrShortCircuited is the fallback cause when a call was never attempted.
	ErrShortCircuited = errors.New("circuit breaker is open")
)
