package core

import (
	"errors"
	"fmt"
)

// ErrNoActiveCycle signals that a company has no running cycle. Callers that
// can render an empty state check for it with errors.Is.
var ErrNoActiveCycle = errors.New("no active cycle")

// ErrInvalidCredentials is returned for every authentication failure so the
// login form cannot be used to probe which usernames exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ValidationError reports a user-correctable input problem, naming the
// offending field so forms can redisplay it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientInventoryError rejects an entry whose feed consumption exceeds
// the bags available. It carries the exact shortage so the form can show it.
type InsufficientInventoryError struct {
	AttemptedBags int
	AvailableBags int
	ShortageBags  int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient feed stock: attempted to consume %d bags with %d available (short %d)",
		e.AttemptedBags, e.AvailableBags, e.ShortageBags)
}

// LowStockWarning is advisory: the entry succeeded but remaining feed is at
// or below the configured threshold.
type LowStockWarning struct {
	RemainingBags int
	ThresholdBags int
}

func (w *LowStockWarning) Message() string {
	return fmt.Sprintf("feed stock low: %d bags remaining (threshold %d)", w.RemainingBags, w.ThresholdBags)
}

// NotFoundError reports a lookup miss for a company-scoped resource.
type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func newNotFoundError(resource string, id int) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError rejects an operation that contradicts current state, such as
// a second active cycle or a duplicate entry date.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func newConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
