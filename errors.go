package relay

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid value supplied while building a
// Dispatcher. No dispatcher is produced when it is returned.
type ConfigurationError struct {
	// Index is the position of the offending value in the constructor arguments.
	Index  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("relay: middleware at index %d is invalid: %s", e.Index, e.Reason)
}

// ResolutionKind classifies a ResolutionError.
type ResolutionKind string

const (
	// UnresolvableHandler means the value matched none of the accepted handler shapes.
	UnresolvableHandler ResolutionKind = "unresolvable_handler"
	// MissingResponse means a func handler returned something that is not a Response.
	MissingResponse ResolutionKind = "missing_response"
	// StringNotConvertible means a string handler named nothing that can be dispatched.
	StringNotConvertible ResolutionKind = "string_not_convertible"
)

// ResolutionError is returned when a handler value cannot be normalized
// into a Middleware, or when a normalized handler fails its contract at
// call time.
type ResolutionError struct {
	Kind ResolutionKind
	// Handler describes the rejected value: its type, the type of the bad
	// return value, or the original handler string.
	Handler string
	Err     error
}

// Sentinels for errors.Is. They match any ResolutionError of the same kind.
var (
	ErrUnresolvableHandler  = &ResolutionError{Kind: UnresolvableHandler}
	ErrMissingResponse      = &ResolutionError{Kind: MissingResponse}
	ErrStringNotConvertible = &ResolutionError{Kind: StringNotConvertible}
)

func (e *ResolutionError) Error() string {
	var msg string
	switch e.Kind {
	case UnresolvableHandler:
		msg = fmt.Sprintf("handler %s must be a Middleware, a RequestHandler, a handler string or a func taking (context.Context, *http.Request, RequestHandler)", e.Handler)
	case MissingResponse:
		msg = fmt.Sprintf("func handler must return a relay.Response, but returned %s", e.Handler)
	case StringNotConvertible:
		msg = fmt.Sprintf("string handler %q must name a service or registered type that implements Middleware or RequestHandler, or carry a callable @method", e.Handler)
	default:
		msg = fmt.Sprintf("cannot resolve handler %s", e.Handler)
	}
	if e.Err != nil {
		return "relay: " + msg + ": " + e.Err.Error()
	}
	return "relay: " + msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is reports whether target is a ResolutionError sentinel of the same kind.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	if !ok {
		return false
	}
	return t.Handler == "" && t.Err == nil && t.Kind == e.Kind
}

func unresolvable(v any) error {
	return &ResolutionError{Kind: UnresolvableHandler, Handler: describe(v)}
}

func missingResponse(v any) error {
	return &ResolutionError{Kind: MissingResponse, Handler: describe(v)}
}

func notConvertible(handler string, cause error) error {
	return &ResolutionError{Kind: StringNotConvertible, Handler: handler, Err: cause}
}

// describe names the dynamic type of v.
func describe(v any) string {
	return fmt.Sprintf("%T", v)
}

var errNilResponse = errors.New("relay: handler returned a nil response without an error")

// PanicError carries the value recovered by Recover.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("relay: recovered from panic: %v", e.Value)
}
