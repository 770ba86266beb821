package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound means the geocoder returned zero candidates.
var ErrNotFound = errors.New("location not found")

// TransportError means an upstream call could not complete: timeout, DNS,
// connection failure, or a non-2xx status not attributable to "no result".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError means an upstream answered but the payload did not
// have the expected shape.
type MalformedResponseError struct {
	Op     string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

// FallbackReason records why an analysis used the fallback table.
type FallbackReason string

const (
	ReasonNone      FallbackReason = ""
	ReasonNotFound  FallbackReason = "not_found"
	ReasonTransport FallbackReason = "transport"
	ReasonMalformed FallbackReason = "malformed"
	ReasonBypassed  FallbackReason = "bypassed"
	ReasonUnknown   FallbackReason = "unknown"
)

// ReasonFor classifies an upstream error into a fallback reason.
func ReasonFor(err error) FallbackReason {
	if err == nil {
		return ReasonNone
	}
	var transportErr *TransportError
	var malformedErr *MalformedResponseError
	switch {
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.As(err, &transportErr):
		return ReasonTransport
	case errors.As(err, &malformedErr):
		return ReasonMalformed
	default:
		return ReasonUnknown
	}
}

// Outcome is the metrics label for an upstream call result.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(ReasonFor(err))
}
