package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidAction        = errors.New("invalid_action")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrUnsupportedOrderType = errors.New("unsupported_order_type")
	ErrMissingPrice         = errors.New("missing_price")
)

// ValidationError represents a request validation failure. Validation
// failures are never retried.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// OrderPlacementError is returned once the retry budget for an order is
// exhausted. Err is the failure seen on the last attempt.
type OrderPlacementError struct {
	Attempts int
	Err      error
}

func (e *OrderPlacementError) Error() string {
	return fmt.Sprintf("order placement failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *OrderPlacementError) Unwrap() error {
	return e.Err
}

// SinkError wraps a failure of a logging or notification sink. Sink
// errors are logged and never reach the caller.
type SinkError struct {
	Sink    string
	OrderID string
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: order %s: %v", e.Sink, e.OrderID, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
