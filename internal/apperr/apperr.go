package apperr

import (
	"errors"
	"net/http"
	"time"
)

type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindBlocked
	KindRateLimit
	KindLockout
	KindNotFound
	KindUnavailable
	KindUpstream
)

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization, KindBlocked:
		return http.StatusForbidden
	case KindRateLimit, KindLockout:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindBlocked:
		return "blocked"
	case KindRateLimit:
		return "rate_limit"
	case KindLockout:
		return "lockout"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindUpstream:
		return "upstream"
	default:
		return "server"
	}
}

// Error is the client-facing failure of a request. Message is safe to show to
// the caller; Err holds the underlying cause and never leaves the process.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	msgAccessDenied = "access denied"
	msgInternal     = "internal server error"
)

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func Forbidden() *Error {
	return &Error{Kind: KindAuthorization, Message: msgAccessDenied}
}

func Blocked(message string) *Error {
	return &Error{Kind: KindBlocked, Message: message}
}

func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter}
}

func Locked(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindLockout, Message: message, RetryAfter: retryAfter}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message}
}

// Upstream reports a failed call to a third-party service. The cause is kept
// for logs only.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindServer, Message: msgInternal, Err: err}
}

// From returns err as an *Error. Anything that is not already classified is
// treated as an unexpected server failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return KindServer
	}
	return From(err).Kind
}
