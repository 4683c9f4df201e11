// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// WebhookEvent records one verified gateway callback delivery, keyed by
// (provider, order id, event type) for after-the-fact auditing. The webhook
// handler records a row for every delivery whose signature verified; failed
// reconciliations keep the row with ProcessingError set so an operator can
// replay them.
type WebhookEvent struct {
	ID              string     `gorm:"type:TEXT NOT NULL;primaryKey"`
	Provider        string     `gorm:"type:TEXT NOT NULL;index"`
	OrderID         string     `gorm:"type:TEXT NOT NULL;index"`
	EventType       string     `gorm:"type:TEXT NOT NULL"`
	PayloadJSON     string     `gorm:"type:TEXT NOT NULL"`
	SignatureValid  bool       `gorm:"type:BOOLEAN NOT NULL"`
	ProcessedAt     *time.Time `gorm:"type:DATETIME"`
	ProcessingError string     `gorm:"type:TEXT"`
	CreatedAt       time.Time  `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (WebhookEvent) TableName() string { return "webhook_events" }
