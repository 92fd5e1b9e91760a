// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// Reference data errors
	ErrInvalidDefinition = errors.New("invalid reference definition")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrLimitReached     = errors.New("limit reached")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")
	ErrConflict               = errors.New("conflict: retry the request")
	ErrLockNotAcquired        = errors.New("lock not acquired")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "streak", "badge", "rank"
	Op      string // Operation that failed, e.g., "Update", "Award"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Streak domain errors
var (
	ErrStreakNotFound    = NewDomainError("streak", "Find", ErrNotFound, "streak state not found")
	ErrStreakVersion     = NewDomainError("streak", "Save", ErrOptimisticLock, "streak state was modified concurrently")
	ErrNoFreezeAvailable = NewDomainError("streak", "GrantFreeze", ErrLimitReached, "freeze allowance already full")
	ErrInvalidActivity   = NewDomainError("streak", "Validate", ErrInvalidInput, "activity date is required")
)

// Badge domain errors
var (
	ErrBadgeNotFound       = NewDomainError("badge", "Find", ErrNotFound, "badge definition not found")
	ErrBadgeCapReached     = NewDomainError("badge", "Award", ErrLimitReached, "badge earn cap reached")
	ErrMalformedDefinition = NewDomainError("badge", "Validate", ErrInvalidDefinition, "malformed badge definition")
)

// Rank domain errors
var (
	ErrEmptyLadder    = NewDomainError("rank", "Validate", ErrInvalidDefinition, "rank ladder is empty")
	ErrLadderOrder    = NewDomainError("rank", "Validate", ErrInvalidDefinition, "rank thresholds must be strictly increasing")
	ErrPointsDecrease = NewDomainError("rank", "Update", ErrInvalidInput, "total points lower than a previous observation")
	ErrRankVersion    = NewDomainError("rank", "Save", ErrOptimisticLock, "rank state was modified concurrently")
	ErrNegativeTotal  = NewDomainError("rank", "Validate", ErrNegativeValue, "total points cannot be negative")
)

// Ledger domain errors
var (
	ErrDuplicateSession = NewDomainError("ledger", "Commit", ErrAlreadyProcessed, "session already recorded")
	ErrEmptySessionID   = NewDomainError("ledger", "Validate", ErrEmptyValue, "session ID is required")
	ErrEmptyUserID      = NewDomainError("ledger", "Validate", ErrInvalidID, "user ID is required")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyProcessed checks if the error reports a replayed operation.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsVersionConflict checks if a single optimistic write lost a race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsConflict checks if the error is a conflict surfaced after internal retries.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable checks if the operation can be retried end-to-end.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrLockNotAcquired) ||
		IsVersionConflict(err)
}
