// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., gateway_unreachable, order_not_paid) are
//     reserved for payment and pass lifecycle errors that cannot be conveyed
//     by status alone.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "order_not_paid",
//	  "message": "gateway reports order status ACTIVE"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeGatewayUnreachable = "gateway_unreachable"
	ErrCodeOrderNotPaid       = "order_not_paid"
	ErrCodePaymentCorrupt     = "payment_record_corrupt"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodePassUsed           = "pass_already_used"
	ErrCodePassNotUsed        = "pass_not_used"
	ErrCodeBadQRToken         = "invalid_qr_token"
)
