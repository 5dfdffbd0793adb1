package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so transports can map them without inspecting messages.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindUnauthorized
	KindAccountLocked
	KindInvalidCredentials
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindUnauthorized:
		return "unauthorized"
	case KindAccountLocked:
		return "account locked"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindNotFound:
		return "not found"
	default:
		return "internal error"
	}
}

// Error is a classified failure. Message is safe to show to callers; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error with a formatted caller-facing message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected fault. The cause is kept for logging only.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the classification of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err, or fallback for internal faults.
func MessageOf(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal && de.Message != "" {
		return de.Message
	}
	return fallback
}
