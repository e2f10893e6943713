// Package services implements the use-case layer of the approval workflow
// engine: draft management, submission orchestration, review actions,
// template administration and the audit trail.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/docflow/pkg/models"
)

// Business error taxonomy. Every operation failure maps to exactly one of
// these classes; the HTTP layer translates them to status codes.
var (
	// Validation errors (400 Bad Request).
	ErrValidation           = errors.New("validation failed")
	ErrRejectReasonRequired = errors.New("reject requires a non-empty reason")

	// ErrTemplateUnusable marks a structurally valid template that cannot
	// back a submission (inactive). Reported separately from structural
	// validation failures.
	ErrTemplateUnusable = errors.New("flow template unusable")

	// Conflict errors (409).
	ErrConflict         = errors.New("conflict")
	ErrTaskAlreadyActed = fmt.Errorf("%w: task already acted", ErrConflict)
	ErrTemplateInUse    = fmt.Errorf("%w: template backs an active review", ErrConflict)

	// ErrNotFound covers both true absence and deliberate existence hiding:
	// a caller who may not see an entity gets the same error as one asking
	// for an entity that never existed.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is reserved for operations whose existence is not secret,
	// such as a non-admin calling archive.
	ErrForbidden = errors.New("forbidden")

	// ErrInternal marks invariant violations, e.g. a submitted document
	// without a current version.
	ErrInternal = errors.New("internal error")
)

// StateNotAllowedError reports an illegal document state transition,
// identifying the current and requested states. It is a Conflict.
type StateNotAllowedError struct {
	Current   models.DocumentStatus
	Requested models.DocumentStatus
}

func (e *StateNotAllowedError) Error() string {
	return fmt.Sprintf("state transition not allowed: %s -> %s", e.Current, e.Requested)
}

func (e *StateNotAllowedError) Is(target error) bool {
	return target == ErrConflict
}

// NewStateNotAllowed creates a StateNotAllowedError for the given transition.
func NewStateNotAllowed(current, requested models.DocumentStatus) *StateNotAllowedError {
	return &StateNotAllowedError{Current: current, Requested: requested}
}

// IsValidationError checks if an error is a validation failure (HTTP 400).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrTemplateUnusable) || errors.Is(err, ErrRejectReasonRequired)
}

// IsConflictError checks if an error is a state conflict or a lost
// concurrency race (HTTP 409).
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFoundError checks if an error is an absence or existence-hiding
// failure (HTTP 404).
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbiddenError checks if an error is an authorization failure (HTTP 403).
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}
