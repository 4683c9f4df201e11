// Package services – OrderService
//
// This file implements OrderService, which initiates a payment order: it
// registers the order with the gateway, persists a pending payment record,
// and hands the gateway's checkout session id back to the client. The pass
// itself is only issued later, by ReconcileService, once the gateway confirms
// the money arrived.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
	"github.com/nkoutso/festpass-admin/internal/gateway"
	"github.com/nkoutso/festpass-admin/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Order initiation errors.
var (
	// ErrInvalidOrder covers missing or nonsensical order inputs.
	ErrInvalidOrder = errors.New("invalid order request")
)

// OrderCreator registers an order with the gateway.
// Satisfied by *gateway.Client; tests substitute a fake.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.CreateOrderResponse, error)
}

// NewOrder is the validated input for order initiation.
type NewOrder struct {
	UserID   string
	Email    string
	Phone    string
	PassType string
	Amount   float64
	Currency string
	TeamID   *string
	EventIDs string // JSON-encoded list; may be empty
}

// OrderSession is what the client needs to open the gateway's checkout UI.
type OrderSession struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"payment_session_id"`
}

// OrderService creates gateway orders and their pending payment records.
type OrderService struct {
	DB      *gorm.DB
	Gateway OrderCreator
}

// Create registers a new order with the gateway and records the pending
// payment. The payment row is written only after the gateway accepted the
// order; a gateway failure leaves no local state behind.
func (s *OrderService) Create(ctx context.Context, in NewOrder) (*OrderSession, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", in.UserID)),
	)
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.PassType = strings.TrimSpace(in.PassType)
	if in.UserID == "" || in.PassType == "" || in.Amount <= 0 {
		return nil, ErrInvalidOrder
	}
	if in.Currency == "" {
		in.Currency = "INR"
	}

	orderID := "ord_" + uuid.NewString()

	resp, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		OrderID:       orderID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		CustomerID:    in.UserID,
		CustomerEmail: in.Email,
		CustomerPhone: in.Phone,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnreachable) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
		}
		return nil, err
	}

	if _, err := repo.CreatePayment(ctx, s.DB, orderID, in.UserID, in.PassType, in.Amount, in.Currency, in.TeamID, in.EventIDs); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", orderID))
	return &OrderSession{OrderID: orderID, SessionID: resp.SessionID}, nil
}

// RecordOnspot persists an admin-keyed on-the-spot payment directly as
// success. Desk payments have no gateway order to reconcile; the pass is
// issued immediately.
func (s *OrderService) RecordOnspot(ctx context.Context, in NewOrder, recordedBy string) (*domain.OnspotPayment, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "RecordOnspot",
		trace.WithAttributes(attribute.String("user.id", in.UserID)),
	)
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.PassType = strings.TrimSpace(in.PassType)
	if in.UserID == "" || in.PassType == "" || in.Amount <= 0 {
		return nil, ErrInvalidOrder
	}
	if in.Currency == "" {
		in.Currency = "INR"
	}

	p := &domain.OnspotPayment{
		Payment: domain.Payment{
			ID:       uuid.NewString(),
			OrderID:  "onspot_" + uuid.NewString(),
			UserID:   in.UserID,
			PassType: in.PassType,
			Amount:   in.Amount,
			Currency: in.Currency,
			Status:   domain.PaymentSuccess,
			TeamID:   in.TeamID,
			EventIDs: in.EventIDs,
		},
		RecordedBy: recordedBy,
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", p.OrderID))
	return p, nil
}

// OverrideStatus force-sets a payment's status. This is the admin escape
// hatch for records the gateway and reconciliation cannot repair; every call
// should be audited upstream.
func (s *OrderService) OverrideStatus(ctx context.Context, orderID, status string) error {
	switch status {
	case domain.PaymentPending, domain.PaymentSuccess, domain.PaymentFailed:
	default:
		return ErrInvalidOrder
	}
	err := repo.UpdatePaymentStatus(ctx, s.DB, orderID, status)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPaymentNotFound
	}
	return err
}

// Dashboard returns the per-user aggregate shown on the admin landing page.
func (s *OrderService) Dashboard(ctx context.Context, userID string) (repo.UserStats, error) {
	return repo.UserDashboardStats(ctx, s.DB, userID)
}

// ListPayments returns one page of a user's payments plus the total count.
func (s *OrderService) ListPayments(ctx context.Context, userID string, page, pageSize int) ([]domain.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	total, err := repo.CountPayments(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListPaymentsPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
