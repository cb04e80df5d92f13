package domain

import "errors"

var (
	// ErrBackendUnreachable covers connection and protocol failures talking to the cache backend.
	// Callers decide whether to fall back to the upstream value.
	ErrBackendUnreachable = errors.New("cache backend unreachable")
	// ErrBackendTimeout is returned when a backend call exceeds its per-call deadline.
	ErrBackendTimeout = errors.New("cache backend timeout")
	// ErrRemoteUnavailable signals the edge statistics provider could not be reached in time.
	ErrRemoteUnavailable = errors.New("edge stats provider unavailable")
	ErrJobFailed         = errors.New("warm job failed")
	ErrCancelled         = errors.New("cancelled")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
	// ErrEmptyRegistry is returned by a warm run that requires at least one registered job.
	ErrEmptyRegistry  = errors.New("warm registry is empty")
	ErrRegistryFrozen = errors.New("warm registry is frozen")
	ErrDuplicateJob   = errors.New("duplicate warm job")
)
