package core

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the error taxonomy shared across packages.
type ErrorKind string

const (
	// KindTransient covers network failure, timeout, HTTP 429/5xx, and
	// provider rate limiting. Retry with backoff up to MaxRetries; on
	// exhaustion the caller marks the article failed and continues.
	KindTransient ErrorKind = "transient"

	// KindInvalidContent covers below-threshold content, parse failure,
	// and empty sections. Non-retryable per article.
	KindInvalidContent ErrorKind = "invalid_content"

	// KindSchemaViolation covers malformed LLM extraction output. One
	// corrective retry; on second failure the caller records an empty
	// extraction and still marks the article processed.
	KindSchemaViolation ErrorKind = "schema_violation"

	// KindConfiguration covers embedding dimension mismatch, missing
	// seeds, invalid weights. Fails orchestrator start-up immediately.
	KindConfiguration ErrorKind = "configuration"

	// KindStoreIntegrity covers constraint violations and aborted
	// transactions. Propagates to the worker, which releases its claim;
	// repeated store errors are fatal.
	KindStoreIntegrity ErrorKind = "store_integrity"
)

// Error is WikiGR's standardized error, following the Op/Kind/Err shape
// used throughout the package set.
type Error struct {
	Op      string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Kind)
	}
	return fmt.Sprintf("%s: unknown error (%s)", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind.
func NewError(op string, kind ErrorKind, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// Wrap classifies an arbitrary error as transient unless it is already a
// *Error, for external errors bubbling out of a provider call.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(op, KindTransient, "", err)
}

// KindOf extracts the ErrorKind of err, defaulting to KindTransient for
// errors not produced by this package (the conservative choice: an
// unclassified error is assumed retryable up to the caller's retry
// budget rather than silently dropped).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsRetryable reports whether err should be retried by core.Retry.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient:
		return true
	default:
		return false
	}
}
