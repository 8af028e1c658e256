package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every core package. Callers classify with
// errors.Is and surface the rejection at the boundary; the transaction
// that produced the error is always rolled back whole.
var (
	// ErrConstraint covers broken foreign keys and uniqueness.
	ErrConstraint = errors.New("constraint violation")
	// ErrInvalidTransition is an illegal appointment state change.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidState covers double payment, empty-bill payment, and
	// re-billing an already-completed lab test.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized means the caller role lacks the capability.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for lookups of rows that do not exist.
	ErrNotFound = errors.New("not found")
)

// MigrationError is fatal: the process must not serve requests against a
// partially-migrated schema.
type MigrationError struct {
	Step string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("schema migration %s: %s", e.Step, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
