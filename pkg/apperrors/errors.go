// Package apperrors collects the sentinel errors used across the core.
// Callers should compare with errors.Is/errors.As; messages are for logs only.
package apperrors

import "errors"

var (
	// Audio
	ErrDeviceLost     = errors.New("audio device lost")
	ErrStreamOverflow = errors.New("audio stream overflow")
	ErrMalformedFrame = errors.New("malformed audio frame")

	// Service-init
	ErrStartupTimeout   = errors.New("service startup timed out")
	ErrDependencyMissing = errors.New("required dependency missing")

	// Transport
	ErrTransport = errors.New("transport failure against worker")

	// Semantic
	ErrEmptyTranscription = errors.New("transcription returned empty text")
	ErrEmptyUtterance     = errors.New("utterance contained no speech")
	ErrHandlerNoOutput    = errors.New("handler claimed input but produced no output")

	// Resource
	ErrResourceMissing  = errors.New("required resource file missing")
	ErrConfigUnreadable = errors.New("configuration file unreadable")

	// Internal
	ErrInternal = errors.New("internal invariant violated")
)

// ServiceInitializationError wraps a fatal failure to bring up a worker.
type ServiceInitializationError struct {
	Service string
	Cause   error
}

func (e *ServiceInitializationError) Error() string {
	return "service " + e.Service + " failed to initialize: " + e.Cause.Error()
}

func (e *ServiceInitializationError) Unwrap() error {
	return e.Cause
}

// ResourceMissingError names the path of a fatal missing resource.
type ResourceMissingError struct {
	Path string
}

func (e *ResourceMissingError) Error() string {
	return "resource missing: " + e.Path
}

func (e *ResourceMissingError) Unwrap() error {
	return ErrResourceMissing
}
