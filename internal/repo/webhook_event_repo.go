// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the WebhookEvent
// audit model recorded on every verified gateway callback.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
)

// RecordWebhookEvent inserts an audit row for a verified callback delivery.
func RecordWebhookEvent(ctx context.Context, db *gorm.DB, provider, orderID, eventType, payload string) (*domain.WebhookEvent, error) {
	rec := &domain.WebhookEvent{
		ID:             uuid.NewString(),
		Provider:       provider,
		OrderID:        orderID,
		EventType:      eventType,
		PayloadJSON:    payload,
		SignatureValid: true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkWebhookProcessed stamps the audit row with the processing outcome.
// An empty procErr means the reconciliation succeeded (or was a no-op skip).
func MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id, procErr string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed_at":     &now,
			"processing_error": procErr,
		}).Error
}
