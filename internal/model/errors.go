package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes why a single declared item could not be reconciled.
//
// Every kind is recoverable at item granularity: the item is skipped and
// the run moves on. The orchestrator only uses the kind to pick the log
// severity.
type ErrorKind string

const (
	// ErrParse indicates a malformed schema or content body.
	ErrParse ErrorKind = "PARSE_ERROR"

	// ErrRead indicates a missing or unreadable source file.
	ErrRead ErrorKind = "READ_ERROR"

	// ErrDuplicateKey indicates a key collision on create.
	ErrDuplicateKey ErrorKind = "DUPLICATE_KEY"

	// ErrUnresolvedReference indicates a dependency artifact was not found.
	ErrUnresolvedReference ErrorKind = "UNRESOLVED_REFERENCE"

	// ErrPersistence indicates a content store create/update/fetch failure.
	ErrPersistence ErrorKind = "PERSISTENCE_ERROR"
)

// ItemError is the tagged per-item failure returned by upserters.
type ItemError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Item names the failing artifact, e.g. "template ARTICLE-TPL".
	Item string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Item != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Item)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// NewItemError creates an ItemError.
func NewItemError(kind ErrorKind, item, message string, err error) *ItemError {
	return &ItemError{Kind: kind, Item: item, Message: message, Err: err}
}

// KindOf extracts the error kind. Uses errors.As to handle wrapped errors.
// Untagged errors are reported as ErrPersistence, the catch-all for
// backend failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ErrPersistence
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
