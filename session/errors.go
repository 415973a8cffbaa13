package session

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind classifies a CollabError; transport copies it into the
// wire-level error envelope's kind field.
type ErrorKind string

const (
	KindSessionNotFound      ErrorKind = "session_not_found"
	KindSessionFull          ErrorKind = "session_full"
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindSerializationFailure ErrorKind = "serialization_failure"
)

// CollabError is the error type every session-level operation that can fail
// returns. It wraps an optional underlying error and is errors.Is/As
// compatible through Unwrap.
type CollabError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CollabError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CollabError) Unwrap() error { return e.Err }

func errSessionNotFound(id uuid.UUID) *CollabError {
	return &CollabError{Kind: KindSessionNotFound, Message: fmt.Sprintf("session %s not found", id)}
}

func errSessionFull() *CollabError {
	return &CollabError{Kind: KindSessionFull, Message: "session has reached max_clients"}
}

func errPermissionDenied(reason string) *CollabError {
	return &CollabError{Kind: KindPermissionDenied, Message: reason}
}

// ErrSerializationFailure wraps a codec error encountered while serializing
// or deserializing a document or operation record.
func ErrSerializationFailure(err error) *CollabError {
	return &CollabError{Kind: KindSerializationFailure, Message: "serialization failed", Err: err}
}
