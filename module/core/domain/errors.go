package domain

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrPermissionDenied means the position source cannot be started. It is
	// terminal for the update stream until access is granted again.
	ErrPermissionDenied = eris.New("location permission denied")

	// ErrProviderReconciliationFailed means an add or remove call against the
	// geofence provider failed. The next position update retries.
	ErrProviderReconciliationFailed = eris.New("geofence reconciliation failed")

	// ErrReconcileTimeout means the provider did not report a result before
	// the plan deadline.
	ErrReconcileTimeout = eris.New("geofence reconciliation timed out")

	ErrInvalidInput = eris.New("invalid input")

	ErrNotFound = eris.New("not found")
)

// InvalidInputError describes a malformed coordinate or parameter. It
// matches ErrInvalidInput.
type InvalidInputError struct {
	Field  string
	Reason string
}

func NewInvalidInputError(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ReconciliationError reports which provider call of a plan failed. It
// matches ErrProviderReconciliationFailed and unwraps to the provider error.
type ReconciliationError struct {
	Op  string
	Err error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProviderReconciliationFailed.Error(), e.Op, e.Err)
}

func (e *ReconciliationError) Is(target error) bool {
	return target == ErrProviderReconciliationFailed
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
