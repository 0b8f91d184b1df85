// Package apperr defines the error taxonomy shared by every module.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that branch on failure type.
type Kind string

const (
	KindNotAuthenticated Kind = "not_authenticated"
	KindValidation       Kind = "validation"
	KindStorage          Kind = "storage"
	KindProvider         Kind = "provider"
	KindConfiguration    Kind = "configuration"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind sentinels. errors.Is(err, ErrStorage) matches any storage error.
var (
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated, Message: "user not authenticated"}
	ErrValidation       = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrStorage          = &Error{Kind: KindStorage, Message: "storage failure"}
	ErrProvider         = &Error{Kind: KindProvider, Message: "identity provider failure"}
	ErrConfiguration    = &Error{Kind: KindConfiguration, Message: "invalid configuration"}
)

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NotAuthenticated returns the not-authenticated error.
func NotAuthenticated() error {
	return &Error{Kind: KindNotAuthenticated, Message: ErrNotAuthenticated.Message}
}

// Validation returns a validation error with a human-readable message.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Storage wraps a data store failure.
func Storage(message string, err error) error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// Provider wraps an identity provider failure.
func Provider(message string, err error) error {
	return &Error{Kind: KindProvider, Message: message, Err: err}
}

// Wrap classifies err under kind, keeping its text as the message.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// Configuration returns a configuration error.
func Configuration(message string) error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the human-readable message of a classified error.
// Unclassified errors get a generic message so internals do not leak to users.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong"
}

// Payload is the wire form of a classified error.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ToPayload converts err for transport. Unclassified errors travel as the
// fallback kind.
func ToPayload(err error, fallback Kind) *Payload {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Payload{Kind: e.Kind, Message: e.Message}
	}
	return &Payload{Kind: fallback, Message: err.Error()}
}

// Err restores the error carried by p.
func (p *Payload) Err() error {
	if p == nil {
		return nil
	}
	return &Error{Kind: p.Kind, Message: p.Message}
}
