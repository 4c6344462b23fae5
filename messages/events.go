package messages

import "fmt"

// ErrorKind tags the provenance of a provider-client error, per
// spec.md §7.
type ErrorKind string

const (
	// ErrorNetwork is a transport failure: connection refused, a
	// timeout cascade, or a WebSocket closed unexpectedly.
	ErrorNetwork ErrorKind = "network"
	// ErrorResponse is an HTTP non-success status.
	ErrorResponse ErrorKind = "response"
	// ErrorFormat is a successful read that failed to parse.
	ErrorFormat ErrorKind = "format"
	// ErrorRemote is a provider-reported error in a well-formed response.
	ErrorRemote ErrorKind = "remote"
)

// ClientError is the error type every provider client returns.
type ClientError struct {
	Kind   ErrorKind
	Msg    string
	Source error
}

// NewClientError builds a ClientError, wrapping an optional source.
func NewClientError(kind ErrorKind, msg string, source error) *ClientError {
	return &ClientError{Kind: kind, Msg: msg, Source: source}
}

// Error renders "<Kind> error: <msg>", the exact format the controller
// prefixes onto a failed assistant message (spec.md §4.1, §7).
func (e *ClientError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "unknown"
	}
	if e.Source != nil {
		return fmt.Sprintf("%s error: %s: %v", kind, e.Msg, e.Source)
	}
	return fmt.Sprintf("%s error: %s", kind, e.Msg)
}

// Unwrap exposes the wrapped source error for errors.Is/As.
func (e *ClientError) Unwrap() error {
	return e.Source
}
