// Package apperr defines the error taxonomy shared by repositories, the
// authenticator and the HTTP gateway. Only the gateway turns these into
// status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAuthorizationDenied  = errors.New("authorization denied")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// Error tags a failure with one of the sentinel kinds above. Msg is safe to
// show to callers; Cause is for server-side logs only.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Is lets errors.Is match against the sentinel kind.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) error { return &Error{Kind: ErrValidation, Msg: msg} }

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Msg: msg} }

func Conflict(msg string) error { return &Error{Kind: ErrConflict, Msg: msg} }

func Unauthenticated() error {
	return &Error{Kind: ErrAuthenticationFailed, Msg: "invalid credentials"}
}

func Forbidden() error { return &Error{Kind: ErrAuthorizationDenied, Msg: "forbidden"} }

// Unavailable wraps an infrastructure failure. The cause never reaches the client.
func Unavailable(cause error) error { return &Error{Kind: ErrStoreUnavailable, Cause: cause} }

const genericUnavailable = "service temporarily unavailable"

// Status maps the taxonomy to an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		// store outages and anything outside the taxonomy
		return http.StatusServiceUnavailable
	}
}

// Public returns the message a client may see for err.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case ErrStoreUnavailable:
			return genericUnavailable
		case ErrAuthenticationFailed:
			if e.Msg == "" {
				return "invalid credentials"
			}
		}
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.Error()
	}
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return genericUnavailable
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrAuthorizationDenied):
		return err.Error()
	case errors.Is(err, ErrAuthenticationFailed):
		return "invalid credentials"
	}
	return genericUnavailable
}
