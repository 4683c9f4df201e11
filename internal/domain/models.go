// Package domain defines the persistence models for payments, passes, teams,
// and events. These types are mapped with GORM and form the core data layer
// of the registration back-office.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Payment statuses. Status is the single source of truth for financial
// validity; no other field may override it.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// Pass usage states.
const (
	PassPaid = "paid" // issued, not yet redeemed
	PassUsed = "used" // redeemed at the gate
)

// Payment represents one attempt to pay for one registration. A payment is
// created when an order is initiated against the gateway and is mutated only
// by the reconciliation engine (pending→success) or by explicit admin
// override.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OrderID: the gateway order identifier; the external correlation key.
//   - UserID: owner of the registration; indexed for per-user dashboards.
//   - PassType: the pass this payment buys (e.g. "day_pass", "team_pass").
//   - Amount: currency-agnostic numeric value.
//   - Status: pending|success|failed (enforced by DB constraint).
//   - TeamID: optional team linkage for group pass types.
//   - EventIDs: JSON-encoded list of event ids this payment covers; may be
//     empty, in which case event linkage is resolved from pass type at
//     reconciliation time.
type Payment struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	OrderID   string         `json:"order_id"   gorm:"type:varchar(64);not null;uniqueIndex"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index"`
	PassType  string         `json:"pass_type"  gorm:"type:varchar(64);not null"`
	Amount    float64        `json:"amount"     gorm:"not null"`
	Currency  string         `json:"currency"   gorm:"type:varchar(8);not null;default:'INR'"`
	Status    string         `json:"status"     gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','success','failed')"`
	TeamID    *string        `json:"team_id,omitempty"   gorm:"type:char(36)"`
	EventIDs  string         `json:"event_ids,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// OnspotPayment is an admin-initiated on-the-spot payment. It shares the
// Payment shape but lives in its own table; order lookups check the primary
// payments table first and fall back here.
//
// Payment's index tags must stay unnamed: the embedded copy inherits them,
// and SQLite index names are database-global, so a pinned name would collide
// between payments and onspot_payments during migration.
type OnspotPayment struct {
	Payment
	// RecordedBy identifies the admin who keyed in the payment at the desk.
	RecordedBy string `json:"recorded_by" gorm:"type:varchar(64)"`
}

// TableName returns the database table name for OnspotPayment.
func (OnspotPayment) TableName() string { return "onspot_payments" }

// Pass represents one issued, redeemable credential derived from exactly one
// successful payment.
//
// The unique index on PaymentID is the idempotence anchor for the
// reconciliation engine: concurrent reconciliation attempts for the same
// order collapse into a single row because the second insert fails with a
// duplicate-key error and re-reads the winner.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PaymentID: the gateway order id of the paying transaction (UNIQUE).
//   - UserID / PassType: denormalized from the payment at issuance.
//   - Status: paid (unused) or used; flipped on redemption and admin revert.
//   - TeamID: optional team linkage; set for group pass types.
//   - EventIDs: JSON-encoded event linkage resolved at issuance.
//   - QRCode: rendered redemption token embedding pass id, user, and type.
type Pass struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	PaymentID string         `json:"payment_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_passes_payment"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_passes"`
	PassType  string         `json:"pass_type"  gorm:"type:varchar(64);not null"`
	Status    string         `json:"status"     gorm:"type:varchar(16);not null;default:'paid';check:status IN ('paid','used')"`
	TeamID    *string        `json:"team_id,omitempty"   gorm:"type:char(36)"`
	EventIDs  string         `json:"event_ids,omitempty" gorm:"type:text"`
	QRCode    string         `json:"qr_code"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Pass.
func (Pass) TableName() string { return "passes" }

// Team is a roster of members plus payment/attendance status, linked 1:1 to
// at most one pass. Members is a JSON-encoded snapshot of member user ids.
type Team struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Name          string         `json:"name"           gorm:"type:varchar(128);not null"`
	LeaderID      string         `json:"leader_id"      gorm:"type:varchar(64);not null;index"`
	Members       string         `json:"members"        gorm:"type:text"` // JSON array of user ids
	PaymentStatus string         `json:"payment_status" gorm:"type:varchar(16);not null;default:'pending'"`
	PassID        *string        `json:"pass_id,omitempty" gorm:"type:char(36)"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Team.
func (Team) TableName() string { return "teams" }

// Event describes an event that passes grant entry to. AllowedPassTypes is a
// JSON-encoded list used to resolve event linkage for payments that carry no
// explicit event list.
type Event struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	Name             string         `json:"name"               gorm:"type:varchar(128);not null"`
	AllowedPassTypes string         `json:"allowed_pass_types" gorm:"type:text"` // JSON array
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }
