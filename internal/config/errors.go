package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrNoLayers indicates the keymap defines no layers.
	ErrNoLayers = errors.New("keymap defines no layers")

	// ErrRaggedLayer indicates a layer's key count differs from the base
	// layer's.
	ErrRaggedLayer = errors.New("layer key count mismatch")

	// ErrTooManyKeys indicates the keymap exceeds the addressable key
	// index range.
	ErrTooManyKeys = errors.New("too many keys in keymap")

	// ErrBadExpression indicates an action expression could not be parsed.
	ErrBadExpression = errors.New("invalid action expression")

	// ErrBadTransform indicates the scanner transform table is malformed.
	ErrBadTransform = errors.New("invalid scanner transform")

	// ErrBadScannerType indicates an unknown scanner type.
	ErrBadScannerType = errors.New("unknown scanner type")

	// ErrBadDebounceMode indicates an unknown debounce mode name.
	ErrBadDebounceMode = errors.New("unknown debounce mode")

	// ErrLayerOutOfRange indicates a reference to a layer the keymap does
	// not define.
	ErrLayerOutOfRange = errors.New("layer reference out of range")

	// ErrBadCombo indicates a combo rule is malformed.
	ErrBadCombo = errors.New("invalid combo rule")

	// ErrWatcherClosed indicates an operation on a closed config watcher.
	ErrWatcherClosed = errors.New("config watcher is closed")
)

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
