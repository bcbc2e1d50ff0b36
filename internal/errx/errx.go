// Package errx provides the link registry's error kinds. Every failure that
// leaves a storage backend or the registry carries exactly one Kind, which the
// HTTP layer maps to a status code and a user-facing message.
package errx

import (
	"context"
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	InvalidURL
	InvalidCodeFormat
	CodeTaken
	CodeSpaceExhausted
	NotFound
	MissingParameter
	StorageUnavailable
	Internal
)

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case InvalidURL:
		return "InvalidURL"
	case InvalidCodeFormat:
		return "InvalidCodeFormat"
	case CodeTaken:
		return "CodeTaken"
	case CodeSpaceExhausted:
		return "CodeSpaceExhausted"
	case NotFound:
		return "NotFound"
	case MissingParameter:
		return "MissingParameter"
	case StorageUnavailable:
		return "StorageUnavailable"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Client reports whether the kind is caused by caller input rather than by
// the service or its backends.
func (k Kind) Client() bool {
	switch k {
	case InvalidURL, InvalidCodeFormat, CodeTaken, NotFound, MissingParameter:
		return true
	default:
		return false
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap re-tags err under op, keeping its kind. Errors without a kind are
// classified as StorageUnavailable when they come from a cancelled or
// expired context and Internal otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == Unknown {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = StorageUnavailable
		} else {
			kind = Internal
		}
	}
	return E(op, kind, err)
}
