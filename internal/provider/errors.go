package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// RateLimitMessage is reported for every rate-limit failure, whatever the
// provider said.
const RateLimitMessage = "rate limit exceeded"

// Kind discriminates where a failure came from.
type Kind int

const (
	// KindUnhandled is anything that is neither a provider signal nor a transport failure.
	KindUnhandled Kind = iota
	// KindUpstream is an error or rate-limit marker embedded in a provider payload.
	KindUpstream
	// KindTransport is a failure reaching the provider or a non-2xx response.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	default:
		return "unhandled"
	}
}

// Error is the uniform failure raised by the provider layer.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UpstreamError reports an explicit provider error message (400).
func UpstreamError(message string) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusBadRequest, Message: message}
}

// RateLimitError reports a provider rate-limit signal (429).
func RateLimitError(cause error) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusTooManyRequests, Message: RateLimitMessage, Err: cause}
}

// TransportError reports a failed exchange with the provider. A zero status
// means no response was received.
func TransportError(status int, message string, cause error) *Error {
	return &Error{Kind: KindTransport, Status: status, Message: message, Err: cause}
}

// UnhandledError reports a payload the pipeline could not make sense of.
func UnhandledError(message string, cause error) *Error {
	return &Error{Kind: KindUnhandled, Status: http.StatusInternalServerError, Message: message, Err: cause}
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) && pe.Status > 0 {
		return pe.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
