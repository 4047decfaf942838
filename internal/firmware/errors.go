package firmware

import (
	"errors"
	"fmt"
)

// Firmware errors.
var (
	// ErrAlreadyRunning indicates Run was called while the firmware is
	// already running.
	ErrAlreadyRunning = errors.New("firmware already running")

	// ErrPinMismatch indicates the supplied pins do not match the
	// configured scanner geometry.
	ErrPinMismatch = errors.New("pin count does not match scanner transform")

	// ErrNoConfig indicates neither a config value nor a config path was
	// supplied.
	ErrNoConfig = errors.New("no configuration supplied")
)

// InitError reports which component failed to initialize.
type InitError struct {
	Component string
	Err       error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
