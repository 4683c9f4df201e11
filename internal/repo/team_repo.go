// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Team and Event
// models used by the reconciliation engine to resolve linkage.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
)

// GetTeam returns a team by primary key, or ErrNotFound.
func GetTeam(ctx context.Context, db *gorm.DB, id string) (*domain.Team, error) {
	var t domain.Team
	err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LinkTeamPass marks the team as paid and records the issued pass id.
func LinkTeamPass(ctx context.Context, db *gorm.DB, teamID, passID string) error {
	res := db.WithContext(ctx).Model(&domain.Team{}).
		Where("id = ?", teamID).
		Updates(map[string]any{
			"payment_status": domain.PaymentSuccess,
			"pass_id":        passID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEventsForPassType returns all events whose allowed-pass-types list
// includes the given pass type. The allowed list is stored as a JSON array of
// strings; a LIKE match on the quoted element is sufficient for the small,
// static event table.
func ListEventsForPassType(ctx context.Context, db *gorm.DB, passType string) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("allowed_pass_types LIKE ?", `%"`+passType+`"%`).
		Find(&out).Error
	return out, err
}
