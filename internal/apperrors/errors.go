// Package apperrors defines the failure kinds shared by the account, identity,
// follow, and playlist services.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// KindInternal covers every failure that has not been classified.
	KindInternal Kind = "internal"
	// KindValidation reports a blank, oversize, or duplicate input field.
	KindValidation Kind = "validation_error"
	// KindDuplicateEmail reports a registration against an email that is already taken.
	KindDuplicateEmail Kind = "duplicate_email"
	// KindInvalidCredentials reports an unknown email or a wrong password.
	KindInvalidCredentials Kind = "invalid_credentials"
	// KindConflict reports a lost uniqueness race.
	KindConflict Kind = "conflict"
	// KindNotFound reports a missing or foreign resource.
	KindNotFound Kind = "not_found"
	// KindSelfFollow reports an account trying to follow itself.
	KindSelfFollow Kind = "self_follow"
	// KindUnsupportedProvider reports an OAuth provider outside the supported set.
	KindUnsupportedProvider Kind = "unsupported_provider"
)

// Sentinels for errors.Is comparisons; any *Error of the same kind matches.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrDuplicateEmail      = &Error{Kind: KindDuplicateEmail}
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrSelfFollow          = &Error{Kind: KindSelfFollow}
	ErrUnsupportedProvider = &Error{Kind: KindUnsupportedProvider}
)

// Error carries the failing operation, its kind, and an optional cause.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + "." + prefix
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error target carrying the same kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// Code returns the operation-qualified kind, e.g. "playlists.get.not_found".
func (e *Error) Code() string {
	if e.Op == "" {
		return string(e.Kind)
	}
	return e.Op + "." + string(e.Kind)
}

// New builds an error of the given kind for the named operation.
func New(op string, kind Kind, message string) error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(op string, kind Kind, cause error) error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Internal wraps an unclassified cause; KindOf reports it as KindInternal.
func Internal(op, reason string, cause error) error {
	return &Error{Op: op, Kind: KindInternal, Message: reason, Err: cause}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
