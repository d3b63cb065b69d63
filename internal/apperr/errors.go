// Package apperr defines the error taxonomy shared across the capture,
// segmentation, sidecar and hotkey subsystems.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error into a handling category. Callers branch on
// Code rather than on error strings.
type Code string

const (
	// DeviceError indicates an audio input device could not be opened,
	// negotiated, or has disappeared mid-capture.
	DeviceError Code = "device_error"
	// EngineNotRunning indicates the sidecar process is not started,
	// has exited, or has not completed its handshake.
	EngineNotRunning Code = "engine_not_running"
	// EngineProtocolError indicates a malformed or unexpected JSON-RPC
	// response from the sidecar.
	EngineProtocolError Code = "engine_protocol_error"
	// ModelError indicates the requested model failed to load or is
	// unavailable for the requested operation.
	ModelError Code = "model_error"
	// SegmentTooShort indicates a finalized segment fell below the
	// minimum duration and was discarded rather than transcribed.
	SegmentTooShort Code = "segment_too_short"
	// NoSpeech indicates the engine completed successfully but detected
	// no speech content worth returning.
	NoSpeech Code = "no_speech"
	// PermissionDenied indicates an OS-level permission (accessibility,
	// microphone, input monitoring) was not granted.
	PermissionDenied Code = "permission_denied"
	// Unknown is used when an error does not fit any known category.
	Unknown Code = "unknown"
)

// AppError is the concrete error type returned across package boundaries.
// It carries a Code for programmatic branching, a human message, optional
// metadata for logging, and an optional wrapped cause.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with a fixed message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Code and message to an existing error.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Wrapf attaches a Code and formatted message to an existing error.
func Wrapf(code Code, cause error, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithMetadata returns a copy of e with the given key/value attached. It
// does not mutate the receiver.
func (e *AppError) WithMetadata(key, value string) *AppError {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// CodeOf extracts the Code from err, walking the unwrap chain. It returns
// Unknown if err is nil or does not carry an AppError.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Unknown
}

// IsCode reports whether err (or something it wraps) carries the given Code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// retryable lists the codes that represent transient conditions worth a
// retry: a device hiccup, a sidecar that has not finished its handshake,
// or a one-off protocol error. Model errors, short segments, no-speech
// results, and permission failures are not retried — retrying them wastes
// time without changing the outcome.
var retryable = map[Code]bool{
	DeviceError:         true,
	EngineNotRunning:    true,
	EngineProtocolError: true,
}

// IsRetryable reports whether err represents a transient condition that a
// caller may reasonably retry.
func IsRetryable(err error) bool {
	return retryable[CodeOf(err)]
}
