package broker

import (
	"errors"
	"fmt"
)

// ErrNoSession indicates the upstream answered successfully but has no
// trading session for the requested market/product/date. Callers roll
// forward to the next day rather than retrying.
var ErrNoSession = errors.New("no trading session for date")

// ErrorKind classifies an upstream failure. Only some kinds are usefully
// retried: repeating an authentication failure never helps, while transport
// hiccups and truncated bodies often resolve on the next attempt.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuth
	KindMalformed
)

// String returns the kind label used in logs.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// APIError is a tagged upstream failure.
type APIError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether a repeat attempt could plausibly succeed.
// Authentication failures and non-API errors are not retried.
func Retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind != KindAuth
}
