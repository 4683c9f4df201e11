// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Payment
// model and its on-the-spot variant.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a payment is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
//
// It aliases gorm.ErrRecordNotFound so callers can use errors.Is either way.
var ErrNotFound = gorm.ErrRecordNotFound

// CreatePayment inserts a new pending payment row for an initiated order.
func CreatePayment(ctx context.Context, db *gorm.DB, orderID, userID, passType string, amount float64, currency string, teamID *string, eventIDs string) (*domain.Payment, error) {
	now := time.Now().UTC()
	p := &domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		PassType:  passType,
		Amount:    amount,
		Currency:  currency,
		Status:    domain.PaymentPending,
		TeamID:    teamID,
		EventIDs:  eventIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// FindPaymentByOrderID looks up a payment by gateway order id, checking the
// primary payments table first and the on-the-spot table second. First match
// wins. Returns ErrNotFound when neither table has the order.
func FindPaymentByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var op domain.OnspotPayment
	err = db.WithContext(ctx).Where("order_id = ?", orderID).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op.Payment, nil
}

// MarkPaymentSuccess sets status=success for the payment with the given
// order id, in whichever table holds it. The update is an idempotent set: a
// payment already marked success is left untouched and no error is returned.
func MarkPaymentSuccess(ctx context.Context, db *gorm.DB, orderID string) error {
	res := db.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ? AND status <> ?", orderID, domain.PaymentSuccess).
		Update("status", domain.PaymentSuccess)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Either already success in the primary table, or the row lives in the
	// on-the-spot table. Both cases are handled by the same idempotent set.
	return db.WithContext(ctx).Model(&domain.OnspotPayment{}).
		Where("order_id = ? AND status <> ?", orderID, domain.PaymentSuccess).
		Update("status", domain.PaymentSuccess).Error
}

// UpdatePaymentStatus force-sets a payment's status. Used only by the admin
// override path; the reconciliation engine goes through MarkPaymentSuccess.
func UpdatePaymentStatus(ctx context.Context, db *gorm.DB, orderID, status string) error {
	res := db.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPayments returns the total number of payments owned by the user.
func CountPayments(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Payment{}).
		Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// ListPaymentsPage returns a paginated slice of payments for a user, newest
// first.
func ListPaymentsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}
