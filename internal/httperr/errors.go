// Package httperr defines the closed set of error variants crossing the
// HTTP boundary. Handlers match on these with errors.As instead of
// inspecting ad-hoc status fields.
package httperr

import (
	"fmt"
	"net/http"
)

// Kind classifies client failures so handlers can pick a status code
// without string matching.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Client is a 4xx caused by the caller: missing params, expired token,
// session mismatch, ownership mismatch.
type Client struct {
	Kind    Kind
	Message string
}

func (e *Client) Error() string { return e.Message }

func (e *Client) Status() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func BadRequest(msg string) *Client   { return &Client{Kind: KindBadRequest, Message: msg} }
func Unauthorized(msg string) *Client { return &Client{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Client    { return &Client{Kind: KindForbidden, Message: msg} }

// Provider is a propagated identity-provider failure. The raw body is kept
// for server-side logging only; user-facing messages are mapped elsewhere.
type Provider struct {
	Status  int
	Code    string
	Message string
}

func (e *Provider) Error() string {
	return fmt.Sprintf("identity provider returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Server wraps unexpected failures: network errors to the provider,
// session store unavailable. Always surfaced as a generic 500.
type Server struct {
	Cause error
}

func (e *Server) Error() string { return fmt.Sprintf("internal error: %v", e.Cause) }
func (e *Server) Unwrap() error { return e.Cause }
