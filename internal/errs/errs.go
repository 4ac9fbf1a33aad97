// Package errs defines the error categories shared by the driver, canvas
// and web layers. Callers classify failures with errors.Is and decide
// whether to retry, surface to HTTP, or log and continue.
package errs

import "errors"

var (
	// ErrInvalidArgument covers nil, out-of-range or oversized input
	// (id too long, image too large, bad enum value).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports a missing canvas, element or image id.
	ErrNotFound = errors.New("not found")

	// ErrExhausted reports a full canvas or a failed allocation.
	ErrExhausted = errors.New("resource exhausted")

	// ErrAlreadyExists reports a duplicate element id within a canvas.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTimeout reports a lock-acquisition or busy-wait timeout.
	ErrTimeout = errors.New("timeout")

	// ErrDevice reports a bus transfer error or a panel-side failure.
	ErrDevice = errors.New("device failure")

	// ErrInvalidState reports an operation on an uninitialized or
	// wrong-state handle.
	ErrInvalidState = errors.New("invalid state")
)
