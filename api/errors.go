package api

import (
	"errors"
	"net/http"

	"github.com/hazyhaar/sitelens/artifact"
	"github.com/hazyhaar/sitelens/genai"
	"github.com/hazyhaar/sitelens/horosafe"
)

// Kind classifies an operation failure for the transport boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnavailable
	KindNotFound
	KindUnauthorized
)

// Error is an operation failure with a kind. Its message is what the caller
// sees.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Err: errors.New(msg)}
}

// errURLRequired is the missing-url validation failure.
var errURLRequired = validationError("URL is required")

// errUnavailable is returned by generation operations when no model is bound.
var errUnavailable = &Error{Kind: KindUnavailable, Err: genai.ErrUnavailable}

// classify returns the kind of err, looking through wrapping and mapping
// lower-level sentinels.
func classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, genai.ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, artifact.ErrNotFound):
		return KindNotFound
	case horosafe.IsTargetError(err):
		return KindValidation
	}
	return KindInternal
}

func statusOf(err error) int {
	switch classify(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
