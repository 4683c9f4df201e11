// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Pass model.
//
// The pass table carries a unique index on payment_id. CreatePassIfAbsent
// leans on that index to turn the reconciliation engine's check-then-act into
// a single conditional write: whichever concurrent caller loses the insert
// race gets a duplicate-key error and re-reads the winner's row.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
)

// ErrDuplicate indicates that a pass already exists for the given payment id.
var ErrDuplicate = errors.New("duplicate")

// GetPassByPaymentID returns the pass linked to the given gateway order id,
// or ErrNotFound.
func GetPassByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*domain.Pass, error) {
	var p domain.Pass
	err := db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPass returns a pass by primary key, or ErrNotFound.
func GetPass(ctx context.Context, db *gorm.DB, id string) (*domain.Pass, error) {
	var p domain.Pass
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePassIfAbsent inserts a pass row keyed by payment id. On a unique
// violation it returns ErrDuplicate so the caller can re-read the existing
// pass instead of issuing a second one.
func CreatePassIfAbsent(ctx context.Context, db *gorm.DB, pass *domain.Pass) error {
	if pass.ID == "" {
		pass.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pass.CreatedAt = now
	pass.UpdatedAt = now
	if pass.Status == "" {
		pass.Status = domain.PassPaid
	}
	if err := db.WithContext(ctx).Create(pass).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdatePassStatus flips the usage state of a pass (paid→used on redemption,
// used→paid on admin revert). Returns ErrNotFound for unknown ids.
func UpdatePassStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).Model(&domain.Pass{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BackfillPassEventIDs sets a pass's event linkage only when it is currently
// absent. Used by the reconciliation engine's already-done path, which never
// mutates anything else about an issued pass.
func BackfillPassEventIDs(ctx context.Context, db *gorm.DB, id, eventIDs string) error {
	return db.WithContext(ctx).Model(&domain.Pass{}).
		Where("id = ? AND (event_ids IS NULL OR event_ids = '')", id).
		Update("event_ids", eventIDs).Error
}

// CountPassesByPaymentID returns how many passes reference the order id.
// Exists only to make idempotence observable in tests and admin audits.
func CountPassesByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Pass{}).
		Where("payment_id = ?", paymentID).Count(&n).Error
	return n, err
}
