// Package failure defines the error taxonomy shared by every pipeline component.
//
// A component returns the most specific Kind that applies. Callers branch on the
// kind with errors.Is against the sentinel values:
//
//	if errors.Is(err, failure.ErrSecurity) {
//	    // ask the user for different input
//	}
//
// The orchestrator never re-wraps these errors, so the kind and message seen by the
// caller are the ones produced by the component that failed.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller can recover from it.
type Kind int

const (
	// KindConfiguration is fatal and only raised at startup.
	KindConfiguration Kind = iota + 1
	// KindSecurity covers malformed, oversized or unsafe input. Recoverable with different input.
	KindSecurity
	// KindAPI covers remote-call failures and unusable responses. Recoverable by retrying the run.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration_error"
	case KindSecurity:
		return "security_error"
	case KindAPI:
		return "api_error"
	default:
		return "unknown_error"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrSecurity      = &Error{Kind: KindSecurity}
	ErrAPI           = &Error{Kind: KindAPI}
)

// Error is a classified failure raised by a pipeline component.
type Error struct {
	Kind Kind

	// Component names the package that raised the error ("security", "acquire", ...).
	Component string

	// Message is the human-readable description shown to the user.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. Sentinels carry no
// component, so only the kind is compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Component == "" || t.Component == e.Component)
}

// Configuration returns a fatal startup error.
func Configuration(component, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Component: component, Message: fmt.Sprintf(format, args...)}
}

// Security returns an input-policy error.
func Security(component, format string, args ...any) *Error {
	return &Error{Kind: KindSecurity, Component: component, Message: fmt.Sprintf(format, args...)}
}

// API returns a remote-call error wrapping cause. cause may be nil.
func API(component string, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindAPI, Component: component, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
