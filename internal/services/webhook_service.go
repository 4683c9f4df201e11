// Package services – WebhookService
//
// This file implements WebhookService, the thin audit layer behind the
// gateway callback endpoint. Every verified delivery is recorded before any
// processing runs, and stamped with its outcome afterwards, so failed
// reconciliations can be replayed from the audit trail.

package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
	"github.com/nkoutso/festpass-admin/internal/repo"
)

// WebhookService persists the callback audit trail.
type WebhookService struct {
	DB *gorm.DB
}

// Record inserts an audit row for a verified delivery and returns its id.
func (s *WebhookService) Record(ctx context.Context, provider, orderID, eventType, payload string) (string, error) {
	rec, err := repo.RecordWebhookEvent(ctx, s.DB, provider, orderID, eventType, payload)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// MarkProcessed stamps the delivery with its processing outcome. An empty
// procErr means success or an intentional skip.
func (s *WebhookService) MarkProcessed(ctx context.Context, id, procErr string) error {
	return repo.MarkWebhookProcessed(ctx, s.DB, id, procErr)
}

// ListUnprocessed returns deliveries that never completed processing, oldest
// first, for the admin replay view.
func (s *WebhookService) ListUnprocessed(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var out []domain.WebhookEvent
	err := s.DB.WithContext(ctx).
		Where("processed_at IS NULL OR processing_error <> ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
