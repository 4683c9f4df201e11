// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries that
// feed the denormalized per-user admin dashboard. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
)

// UserStats is the per-user dashboard aggregate rebuilt after reconciliation.
type UserStats struct {
	Payments     int64      `json:"payments"`
	Successful   int64      `json:"successful"`
	Passes       int64      `json:"passes"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// UserDashboardStats computes the aggregate for a user: total payments,
// successful payments, issued passes, and the most recent activity timestamp
// across both tables. When the user has no rows, counts are 0 and
// LastActivity is nil.
func UserDashboardStats(ctx context.Context, db *gorm.DB, userID string) (UserStats, error) {
	var st UserStats

	q := db.WithContext(ctx).Model(&domain.Payment{}).Where("user_id = ?", userID)
	if err := q.Count(&st.Payments).Error; err != nil {
		return st, err
	}
	if err := db.WithContext(ctx).Model(&domain.Payment{}).
		Where("user_id = ? AND status = ?", userID, domain.PaymentSuccess).
		Count(&st.Successful).Error; err != nil {
		return st, err
	}
	if err := db.WithContext(ctx).Model(&domain.Pass{}).
		Where("user_id = ?", userID).
		Count(&st.Passes).Error; err != nil {
		return st, err
	}
	if st.Payments == 0 && st.Passes == 0 {
		return st, nil
	}

	// Latest updated_at across payments and passes (avoid MAX() -> TEXT in SQLite).
	var row struct {
		UpdatedAt time.Time
	}
	if err := db.WithContext(ctx).Model(&domain.Payment{}).
		Where("user_id = ?", userID).
		Select("updated_at").Order("updated_at DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return st, err
	}
	latest := row.UpdatedAt
	if err := db.WithContext(ctx).Model(&domain.Pass{}).
		Where("user_id = ?", userID).
		Select("updated_at").Order("updated_at DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return st, err
	}
	if row.UpdatedAt.After(latest) {
		latest = row.UpdatedAt
	}
	if !latest.IsZero() {
		st.LastActivity = &latest
	}
	return st, nil
}
