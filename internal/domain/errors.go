package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnclassifiablePath: the path lies under no configured facility tree.
	ErrUnclassifiablePath = errors.New("unclassifiable path")
	// ErrIdentityResolution: the path is under a facility tree but malformed.
	ErrIdentityResolution = errors.New("identity resolution failed")
	// ErrMissingField: a mandatory header field is absent or malformed.
	ErrMissingField = errors.New("missing field")
	// ErrAlreadyExists is returned by storage when the identity is taken.
	ErrAlreadyExists = errors.New("observation already exists")
	// ErrStorageConflict: the uniqueness backstop fired again after a retry.
	ErrStorageConflict = errors.New("storage conflict")
)

// PathError reports a path that could not be classified or resolved.
type PathError struct {
	Path   string
	Reason string
	Kind   error
}

func (e *PathError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Path, e.Reason)
}

func (e *PathError) Unwrap() error { return e.Kind }

// MissingFieldError names the header field that was absent or malformed.
type MissingFieldError struct {
	Field  string
	Path   string
	Detail string
}

func (e *MissingFieldError) Error() string {
	msg := fmt.Sprintf("missing field %s in %s", e.Field, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }
