package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checking via errors.Is.
var (
	// ErrUnknownKind is returned when a node kind is not in the palette.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrDanglingReference is returned when an edge endpoint names no node.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrDuplicateID is returned when a node or edge id repeats within a snapshot.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrMalformedResponse is returned when a backend response cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrSchema is returned when decoded data misses required fields or has wrong types.
	ErrSchema = errors.New("schema error")

	// ErrUpstream is returned for backend transport failures and timeouts.
	ErrUpstream = errors.New("upstream error")

	// ErrValidation is returned for malformed inbound requests.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when an id names no node or edge.
	ErrNotFound = errors.New("not found")

	// ErrNonScalar is returned when a property value is not a string or number.
	ErrNonScalar = errors.New("property value must be a string or a number")

	// ErrSuperseded is returned when committing a proposal whose round-trip was
	// overtaken by a newer one.
	ErrSuperseded = errors.New("proposal superseded by a newer request")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// UnknownKindError names the offending kind.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownKind.Error(), e.Kind)
}

func (e *UnknownKindError) Unwrap() error { return ErrUnknownKind }

// DanglingReferenceError names the edge and the missing endpoint.
type DanglingReferenceError struct {
	EdgeID string
	End    string // "source" or "target"
	NodeID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s: edge %q %s %q does not exist", ErrDanglingReference.Error(), e.EdgeID, e.End, e.NodeID)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrDanglingReference }

// DuplicateIDError names the repeated id and whether it is a node or an edge.
type DuplicateIDError struct {
	Entity EntityKind
	ID     string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrDuplicateID.Error(), e.Entity, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// MalformedResponseError wraps the decoder failure.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return ErrMalformedResponse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrMalformedResponse.Error(), e.Err)
}

func (e *MalformedResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// SchemaError names the missing or mistyped field. When a structural
// violation is reported through ReplaceAll, Err carries the specific cause.
type SchemaError struct {
	Field string
	Msg   string
	Err   error
}

func (e *SchemaError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Field != "" && msg != "":
		return fmt.Sprintf("%s: %s: %s", ErrSchema.Error(), e.Field, msg)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", ErrSchema.Error(), e.Field)
	case msg != "":
		return fmt.Sprintf("%s: %s", ErrSchema.Error(), msg)
	default:
		return ErrSchema.Error()
	}
}

func (e *SchemaError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSchema}
	}
	return []error{ErrSchema, e.Err}
}

// UpstreamError reports a backend failure. Timeout is set when the call
// exceeded its deadline.
type UpstreamError struct {
	Backend string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	what := "request failed"
	if e.Timeout {
		what = "request timed out"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", ErrUpstream.Error(), e.Backend, what)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrUpstream.Error(), e.Backend, what, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// ValidationError reports a malformed inbound request.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
