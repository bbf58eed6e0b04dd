package types

import (
	"errors"
	"fmt"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// Kind classifies failures crossing the upstream boundary.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindAuthExpired       Kind = "auth_expired"
	KindNetworkFailure    Kind = "network_failure"
	KindMalformedResponse Kind = "malformed_response"
	KindUpstreamRejected  Kind = "upstream_rejected"
)

// Error carries the kind plus whatever the upstream returned, so the proxy
// can forward status and body verbatim.
type Error struct {
	Kind    Kind
	Op      string
	Status  int    // upstream status, 0 if no response was received
	Body    []byte // upstream body, forwarded as-is
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasResponse reports whether an upstream response was received at all.
func (e *Error) HasResponse() bool {
	return e.Status != 0
}

func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AsError unwraps to *Error if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
