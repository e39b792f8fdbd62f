// Package apperr defines the failure taxonomy shared by the quota, contract
// and marketplace services. Handlers translate a Kind into an HTTP status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what the caller should do about it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindBlocked
	KindAlreadySigned
	KindQuotaExceeded
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindValidation:    "validation",
	KindAuthorization: "unauthorized",
	KindNotFound:      "not_found",
	KindConflict:      "conflict",
	KindBlocked:       "blocked",
	KindAlreadySigned: "already_signed",
	KindQuotaExceeded: "quota_exceeded",
	KindStorage:       "storage",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinel values such as
// contract.ErrBlocked work with errors.Is even when re-created.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a persistence failure. The message shown to users stays generic.
func Storage(err error, op string) error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindStorage {
			return "Something went wrong on our side, please try again"
		}
		return e.Message
	}
	return "Unexpected error, please try again"
}
