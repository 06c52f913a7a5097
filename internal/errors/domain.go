package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotFoundError indicates that a resource does not resolve for the caller.
// Ownership mismatches on reads are reported through this type as well, so
// the existence of another user's resource is never leaked.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFoundError creates a NotFoundError for a resource/id pair.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ForbiddenError indicates the resource exists but the caller is not its owner.
type ForbiddenError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s does not belong to the caller", e.Resource, e.ID)
}

// NewForbiddenError creates a ForbiddenError for a resource/id pair.
func NewForbiddenError(resource, id string) *ForbiddenError {
	return &ForbiddenError{Resource: resource, ID: id}
}

// InvalidStateError indicates an operation attempted from a state that
// forbids it, e.g. finishing an already-finished session or reserving a
// quarantined batch.
type InvalidStateError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
	Message  string `json:"message"`
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("illegal transition: %s", e.Message)
}

// NewInvalidStateError creates an InvalidStateError naming the violated
// precondition.
func NewInvalidStateError(resource, id, message string) *InvalidStateError {
	return &InvalidStateError{Resource: resource, ID: id, Message: message}
}

// InsufficientQuantityError indicates a consumption request exceeding the
// available batch quantity. The message always includes both numbers.
type InsufficientQuantityError struct {
	BatchID   string  `json:"batch_id"`
	Available float64 `json:"available"`
	Requested float64 `json:"requested"`
	Unit      string  `json:"unit"`
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity: available %g %s, requested %g %s",
		e.Available, e.Unit, e.Requested, e.Unit)
}

// NewInsufficientQuantityError creates an InsufficientQuantityError.
func NewInsufficientQuantityError(batchID string, available, requested float64, unit string) *InsufficientQuantityError {
	return &InsufficientQuantityError{
		BatchID:   batchID,
		Available: available,
		Requested: requested,
		Unit:      unit,
	}
}

// ConflictError indicates an idempotency key reused with a different
// request body, or a storage-level lock conflict the caller should retry.
type ConflictError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a non-retryable ConflictError.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// NewRetryableConflictError creates a ConflictError the caller may retry.
func NewRetryableConflictError(message string) *ConflictError {
	return &ConflictError{Message: message, Retryable: true}
}

// ValidationError indicates malformed input rejected before any state change.
type ValidationError struct {
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsForbidden checks if an error is a ForbiddenError.
func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

// IsInvalidState checks if an error is an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsInsufficientQuantity checks if an error is an InsufficientQuantityError.
func IsInsufficientQuantity(err error) bool {
	var target *InsufficientQuantityError
	return errors.As(err, &target)
}

// IsConflict checks if an error is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsValidation checks if an error is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsDomain reports whether err belongs to the domain error taxonomy. The
// calling layer caches domain outcomes under idempotency records; transport
// and infrastructure failures are never cached.
func IsDomain(err error) bool {
	return IsNotFound(err) || IsForbidden(err) || IsInvalidState(err) ||
		IsInsufficientQuantity(err) || IsConflict(err) || IsValidation(err)
}
