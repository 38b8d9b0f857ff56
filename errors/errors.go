// Package errors provides standardized error handling for Pion components.
// It defines the platform error taxonomy, helpers for consistent error
// wrapping, and kind-classification used at the engine and server boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary handling decisions.
type Kind int

const (
	// KindNotFound covers missing plugins, reactor ids, codec ids and terms
	KindNotFound Kind = iota
	// KindInvalidConfig covers missing or malformed configuration elements
	KindInvalidConfig
	// KindMalformed covers parse errors in input bytes or XML
	KindMalformed
	// KindTypeMismatch covers event value tag vs. term tag conflicts
	KindTypeMismatch
	// KindLifecycle covers start/stop ordering violations
	KindLifecycle
	// KindIO covers underlying stream or socket failures
	KindIO
	// KindInternal covers everything a plugin raised that we cannot classify
	KindInternal
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidConfig:
		return "invalid_config"
	case KindMalformed:
		return "malformed"
	case KindTypeMismatch:
		return "type_mismatch"
	case KindLifecycle:
		return "lifecycle"
	case KindIO:
		return "io"
	default:
		return "internal"
	}
}

// Standard error variables for common conditions
var (
	// Lookup failures
	ErrNotFound        = errors.New("not found")
	ErrPluginNotFound  = errors.New("plugin not found")
	ErrReactorNotFound = errors.New("reactor not found")
	ErrCodecNotFound   = errors.New("codec not found")
	ErrTermNotFound    = errors.New("term not found")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingConfig    = errors.New("missing required configuration element")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrNotAnObject      = errors.New("event type is not an object term")

	// Data processing errors
	ErrMalformed            = errors.New("malformed record")
	ErrTypeMismatch         = errors.New("value type does not match term type")
	ErrWrongEventType       = errors.New("event type does not match codec")
	ErrTermNoLongerDefined  = errors.New("term no longer defined in vocabulary")
	ErrNamespaceLocked      = errors.New("vocabulary namespace is locked")
	ErrDuplicateID          = errors.New("identifier already registered")
	ErrUnsupportedTransfer  = errors.New("unsupported transfer encoding")
	ErrHeadersTooLarge      = errors.New("request headers exceed configured limit")
	ErrRequestLineMalformed = errors.New("malformed request line")

	// Lifecycle errors
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
	ErrShuttingDown   = errors.New("shutting down")
	ErrQueueFull      = errors.New("task queue full")
)

// classified wraps an error together with its Kind.
type classified struct {
	kind Kind
	err  error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapKind wraps an error with context and an explicit classification.
func WrapKind(kind Kind, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: Wrap(err, component, method, action)}
}

// WrapInvalid wraps an error as an invalid-configuration error with context.
func WrapInvalid(err error, component, method, action string) error {
	return WrapKind(KindInvalidConfig, err, component, method, action)
}

// WrapMalformed wraps an error as a parse error with context.
func WrapMalformed(err error, component, method, action string) error {
	return WrapKind(KindMalformed, err, component, method, action)
}

// WrapIO wraps an error as a stream or socket failure with context.
func WrapIO(err error, component, method, action string) error {
	return WrapKind(KindIO, err, component, method, action)
}

// Classify returns the Kind for an error. Unwrapped sentinel errors are
// mapped to their natural kind; everything else is KindInternal.
func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var c *classified
	if errors.As(err, &c) {
		return c.kind
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPluginNotFound),
		errors.Is(err, ErrReactorNotFound),
		errors.Is(err, ErrCodecNotFound),
		errors.Is(err, ErrTermNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrMissingConfig),
		errors.Is(err, ErrUnknownEventType),
		errors.Is(err, ErrNotAnObject),
		errors.Is(err, ErrDuplicateID):
		return KindInvalidConfig
	case errors.Is(err, ErrMalformed),
		errors.Is(err, ErrRequestLineMalformed),
		errors.Is(err, ErrHeadersTooLarge),
		errors.Is(err, ErrUnsupportedTransfer):
		return KindMalformed
	case errors.Is(err, ErrTypeMismatch),
		errors.Is(err, ErrWrongEventType),
		errors.Is(err, ErrTermNoLongerDefined):
		return KindTypeMismatch
	case errors.Is(err, ErrAlreadyRunning),
		errors.Is(err, ErrNotRunning),
		errors.Is(err, ErrShuttingDown):
		return KindLifecycle
	}
	return KindInternal
}

// IsNotFound reports whether an error is a lookup failure. Used where races
// with removal are expected and must be silent, such as engine send.
func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}

// Re-exported stdlib helpers so callers only import this package.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
