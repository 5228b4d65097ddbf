// Package apperr holds the error taxonomy shared by the refresh pipeline and its callers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// NetworkError reports a transport failure or a non-200 upstream response.
// Status is zero when no response was received.
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("network: unexpected HTTP status %d", e.Status)
	}
	if e.Err != nil {
		return "network: " + e.Err.Error()
	}
	return "network: request failed"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseErrorKind narrows down why a document could not be turned into a snapshot.
type ParseErrorKind string

const (
	ParseEncoding    ParseErrorKind = "encoding"
	ParseNoGridFound ParseErrorKind = "no_grid_found"
	ParseNoData      ParseErrorKind = "no_data"
)

// ParseError is returned by the extractor.
type ParseError struct {
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("parse: %s", e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports bad input from a caller, such as a malformed source URL.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsParseKind reports whether err is a ParseError of the given kind.
func IsParseKind(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}
