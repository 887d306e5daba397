package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the closed set used across the server.
type Kind string

const (
	KindAuth            Kind = "auth"
	KindValidation      Kind = "validation"
	KindOverloaded      Kind = "overloaded"
	KindUpstream        Kind = "upstream"
	KindCancelled       Kind = "cancelled"
	KindTimeout         Kind = "timeout"
	KindTransport       Kind = "transport"
	KindSegmentTooSmall Kind = "segment_too_small"
	KindSlowConsumer    Kind = "slow_consumer"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf returns the kind of the first typed error in the chain, or
// KindInternal when the chain carries no typed error.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

// Terminal reports whether the error kind must end the session.
func Terminal(err error) bool {
	switch KindOf(err) {
	case KindSlowConsumer, KindTransport, KindInternal:
		return true
	default:
		return false
	}
}
