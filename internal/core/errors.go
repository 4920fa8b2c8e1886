package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence failure")

	// ErrDuplicateOriginal is returned by Repository.CreateLink when the
	// resource already has an original link.
	ErrDuplicateOriginal = errors.New("resource already has an original link")
)

// InvalidInputError reports uploaded content that failed structural validation.
// Reason carries the underlying parser message.
type InvalidInputError struct {
	Message string
	Reason  string
}

func (e *InvalidInputError) Error() string {
	if e.Reason == "" {
		return e.Message
	}
	return e.Message + ": " + e.Reason
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// UnsupportedActionError reports an action missing from a handler's action table.
type UnsupportedActionError struct {
	HandlerID string
	Action    string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action %q for handler %q", e.Action, e.HandlerID)
}

func (e *UnsupportedActionError) Is(target error) bool { return target == ErrUnsupportedAction }

// NotFoundError reports a lookup that matched nothing: no handler for a
// payload, or a missing import, resource or asset.
type NotFoundError struct {
	Kind string // "handler", "import", "resource", "asset", "link"
	Key  string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "handler" {
		return fmt.Sprintf("no handler found for %s", e.Key)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError wraps a rejection from the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// persistErr wraps err as a PersistenceError unless it is nil or already typed.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
