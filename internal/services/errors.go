// Package services defines the business logic for orders, payment
// reconciliation, and pass lifecycle. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

// Reconciliation-related errors.
var (
	// ErrGatewayUnreachable indicates the payment gateway could not be
	// queried (network error, timeout, 5xx). Retryable; nothing was mutated.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")

	// ErrPaymentNotFound indicates no payment record exists for the order id
	// in either the primary or the on-the-spot table.
	ErrPaymentNotFound = errors.New("no payment record for order")

	// ErrOrderNotFound indicates the order id was empty or unknown upstream.
	ErrOrderNotFound = errors.New("order not found")
)

// Pass lifecycle errors.
var (
	// ErrPassNotFound indicates the requested pass does not exist.
	ErrPassNotFound = errors.New("pass not found")

	// ErrPassAlreadyUsed is returned when redeeming a pass that was already
	// scanned at the gate.
	ErrPassAlreadyUsed = errors.New("pass already used")

	// ErrPassNotUsed is returned when reverting a pass that is still unused.
	ErrPassNotUsed = errors.New("pass is not in used state")
)

// OrderNotPaidError means the gateway explicitly reports a non-paid status.
// Reconciliation refuses and reports the gateway's status rather than
// silently succeeding.
type OrderNotPaidError struct {
	Status string // the gateway's reported order status, e.g. "ACTIVE"
}

// Error implements the error interface.
func (e *OrderNotPaidError) Error() string {
	return fmt.Sprintf("order not paid: gateway reports %q", e.Status)
}

// PaymentCorruptError means the payment record is missing a required field.
// Reconciliation fails loudly instead of proceeding with defaults; an
// operator must fix the record.
type PaymentCorruptError struct {
	OrderID string
	Field   string // the missing required field
}

// Error implements the error interface.
func (e *PaymentCorruptError) Error() string {
	return fmt.Sprintf("payment record for order %s is corrupt: missing %s", e.OrderID, e.Field)
}
