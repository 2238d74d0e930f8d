package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFaxNotFound      = errors.New("fax not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStateConflict    = errors.New("state conflict")
	ErrDuplicateFax     = errors.New("fax already ingested")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrSettingsNotFound = errors.New("settings not found")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ConflictError reports a transition attempted from the wrong source state.
type ConflictError struct {
	FaxID   string
	Current FaxStatus
	Action  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s fax %s in status %s", e.Action, e.FaxID, e.Current)
}

func (e *ConflictError) Unwrap() error { return ErrStateConflict }
