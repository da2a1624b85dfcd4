package entities

import (
	"errors"
	"fmt"
)

var (
	ErrOpenChatExists = errors.New("customer already has an open chat")
	ErrChatClosed     = errors.New("chat is closed")
	ErrRateLimited    = errors.New("too many messages")
)

// ValidationError reports malformed or missing input. Not retryable.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown chat, quote or customer id.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func NotFound(entity EntityType, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// TransientBackendError wraps a failed call to the record store or the API.
// Reads may be re-triggered by the user; writes are never retried automatically.
type TransientBackendError struct {
	Op  string
	Err error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("%s: backend unavailable: %v", e.Op, e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientBackendError
	if errors.As(err, &te) {
		return err
	}
	return &TransientBackendError{Op: op, Err: err}
}

// SubscriptionError reports a push channel that failed to open or dropped.
type SubscriptionError struct {
	Channel string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Channel, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsTransient(err error) bool {
	var te *TransientBackendError
	return errors.As(err, &te)
}
