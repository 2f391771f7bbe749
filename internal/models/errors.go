package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel for absent products, orders, and addresses.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed input field. Recoverable;
// produces no side effects.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError reports an absent referenced entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// GatewayError reports a failed payment facade call or a failure status
// returned by the provider. Payment is not assumed captured unless the
// facade explicitly confirmed it.
type GatewayError struct {
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("payment gateway %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// InconsistentStateError reports that payment was captured but post-success
// bookkeeping failed. The most severe category: manual reconciliation is
// required, and the order is recorded as NEEDS_RECONCILIATION.
type InconsistentStateError struct {
	OrderID string
	Err     error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("payment captured but finalization failed for order %s: %v", e.OrderID, e.Err)
}

func (e *InconsistentStateError) Unwrap() error {
	return e.Err
}
