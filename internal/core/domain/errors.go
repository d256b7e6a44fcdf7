package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate document")
	ErrUnauthorized     = errors.New("unauthorized")
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

// DuplicateError carries the already-stored document so the caller can point
// the user at it in the conflict payload.
type DuplicateError struct {
	ExistingID       string
	ExistingFilename string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("byte-identical document already exists: %s (%s)", e.ExistingFilename, e.ExistingID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }
