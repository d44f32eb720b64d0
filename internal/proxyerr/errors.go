// Package proxyerr defines the error kinds the proxy surfaces to downstream
// clients, independent of where in the pipeline they originate.
package proxyerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the five error kinds from the protocol-translation design:
// invalid_request, authentication, rate_limit, api, internal.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindAuthentication Kind = "authentication"
	KindRateLimit      Kind = "rate_limit"
	KindAPI            Kind = "api"
	KindInternal       Kind = "internal"
)

// Error is a typed proxy error carrying a kind, a human-readable message,
// and (when it originated from the upstream) the upstream HTTP status.
type Error struct {
	Kind       Kind
	Message    string
	Field      string // offending field name, when Kind == KindInvalidRequest
	StatusCode int    // upstream status code, 0 if not applicable
	Cause      error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As reports whether err is (or wraps) a *Error.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// InvalidRequest builds a KindInvalidRequest error naming the offending field.
func InvalidRequest(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Internal builds a KindInternal error — reaching an unreachable branch.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// RateLimited builds a KindRateLimit error for the §5 concurrency cap's
// immediate-rejection path.
func RateLimited(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRateLimit, Message: fmt.Sprintf(format, args...)}
}

// FromTransportError wraps a transport-level failure (DoPost returned
// before any upstream response was ever received — a dial failure, a
// connect timeout) as a KindAPI error, distinct from FromUpstreamStatus
// which maps an upstream response that did arrive.
func FromTransportError(err error) *Error {
	return &Error{Kind: KindAPI, Message: fmt.Sprintf("upstream request failed: %v", err), Cause: err}
}

// FromUpstreamStatus maps an upstream HTTP status code to a Kind, per §4.4's
// error-path table: 400 → invalid_request; 401/403 → authentication;
// 429 → rate_limit; 5xx → api; anything else → api.
func FromUpstreamStatus(status int, message string) *Error {
	var kind Kind
	switch {
	case status == http.StatusBadRequest:
		kind = KindInvalidRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthentication
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 500:
		kind = KindAPI
	default:
		kind = KindAPI
	}
	return &Error{Kind: kind, Message: message, StatusCode: status}
}

// HTTPStatus returns the HTTP status code this error should be surfaced with
// when failing before any streaming has begun (§7 "Pre-stream failures").
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindInternal:
		return http.StatusInternalServerError
	default:
		if e.StatusCode >= 500 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	}
}

// JSON is the downstream protocol's error payload shape:
// {"type": "error", "error": {"type": <kind>, "message": <string>}}.
type JSON struct {
	Type  string    `json:"type"`
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

// ToJSON renders the error as the downstream protocol's error object.
func (e *Error) ToJSON() JSON {
	return JSON{
		Type: "error",
		Error: ErrorBody{
			Type:    e.Kind,
			Message: e.Message,
		},
	}
}
