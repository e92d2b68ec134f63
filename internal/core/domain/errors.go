package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrOutOfBounds       = errors.New("coordinate outside service area")
	ErrMissingEndpoint   = errors.New("route endpoint missing")
	ErrDuplicateName     = errors.New("a favorite with this name already exists")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoResults         = errors.New("no results")
	ErrUnavailable       = errors.New("service unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAuthRequired      = errors.New("authentication required")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNotFound          = errors.New("not found")
	ErrSuperseded        = errors.New("superseded by a newer request")
)

// MissingEndpointError names the endpoint that was absent.
type MissingEndpointError struct {
	Endpoint Endpoint
}

func (e *MissingEndpointError) Error() string {
	return fmt.Sprintf("%s not selected", e.Endpoint)
}

func (e *MissingEndpointError) Is(target error) bool {
	return target == ErrMissingEndpoint
}

// ErrorKind is the coarse failure class used by callers to pick a reaction.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindInput     ErrorKind = "input"
	KindTransient ErrorKind = "transient"
	KindAuth      ErrorKind = "auth"
	KindMalformed ErrorKind = "malformed"
	KindNotFound  ErrorKind = "not_found"
	KindStale     ErrorKind = "stale"
	KindInternal  ErrorKind = "internal"
)

// Classify maps an error onto its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrMissingEndpoint),
		errors.Is(err, ErrDuplicateName), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNoResults):
		return KindInput
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAuthRequired):
		return KindAuth
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrSuperseded):
		return KindStale
	case errors.Is(err, ErrUnavailable):
		return KindTransient
	default:
		return KindInternal
	}
}
