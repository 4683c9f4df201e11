// Package services – ReconcileService
//
// This file implements ReconcileService, the component that converts a paid
// gateway order into exactly one issued pass. It is the single write path for
// pass issuance: webhooks, client-triggered verification, and admin retries
// all funnel into Reconcile, and duplicate or concurrent invocations for the
// same order converge on the same pass.
//
// Idempotence rests on the database, not on application-level checks: the
// passes table has a unique index on payment_id, and issuance is a
// conditional insert. Whoever loses a concurrent insert race re-reads the
// winner's row and reports it as already issued.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the order id and the already-issued outcome.

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/domain"
	"github.com/nkoutso/festpass-admin/internal/gateway"
	"github.com/nkoutso/festpass-admin/internal/notify"
	"github.com/nkoutso/festpass-admin/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// sideEffectTimeout bounds the post-issuance background work (dashboard
// refresh, confirmation email). These run detached from the request context.
const sideEffectTimeout = 15 * time.Second

// PaymentVerifier fetches authoritative order state from the gateway.
// Satisfied by *gateway.Client; tests substitute a fake.
type PaymentVerifier interface {
	GetOrder(ctx context.Context, orderID string) (*gateway.Order, error)
}

// EmailDirectory resolves a user's registered email address, returning ""
// when none is on file. Confirmation email is skipped for such users.
type EmailDirectory interface {
	Email(ctx context.Context, userID string) string
}

// NoDirectory is the default EmailDirectory: no user has an email on file.
type NoDirectory struct{}

// Email always returns "".
func (NoDirectory) Email(context.Context, string) string { return "" }

// ReconcileResult reports the outcome of a successful reconciliation.
type ReconcileResult struct {
	PassID        string `json:"pass_id"`
	QRCode        string `json:"qr_code"`
	AlreadyIssued bool   `json:"already_issued"`
}

// ReconcileService owns the order-to-pass conversion.
type ReconcileService struct {
	DB      *gorm.DB
	Gateway PaymentVerifier
	Mailer  notify.Mailer
	Emails  EmailDirectory
	Log     zerolog.Logger

	// spawn runs post-issuance side effects. Defaults to a plain goroutine;
	// tests set it to run inline so assertions see the effects.
	Spawn func(func())
}

// Reconcile verifies the order with the gateway and issues the pass for it,
// exactly once. Safe to call any number of times, concurrently, for the same
// order id.
//
// Returns:
//   - ErrOrderNotFound for an empty order id
//   - ErrGatewayUnreachable (wrapped) when the gateway cannot be queried
//   - *OrderNotPaidError when the gateway reports a non-paid status
//   - ErrPaymentNotFound when no payment record exists for the order
//   - *PaymentCorruptError when the payment record is missing required fields
func (s *ReconcileService) Reconcile(ctx context.Context, orderID string) (*ReconcileResult, error) {
	tr := otel.Tracer("services/ReconcileService")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	if orderID == "" {
		return nil, ErrOrderNotFound
	}

	// 1. Authoritative truth comes from the gateway, never from the caller.
	// Any failure here is retryable: nothing has been written yet.
	order, err := s.Gateway.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}

	// 2. Refuse anything the gateway does not report as paid.
	if !order.Paid() {
		return nil, &OrderNotPaidError{Status: order.Status}
	}

	// 3. Locate our side of the transaction.
	payment, err := repo.FindPaymentByOrderID(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	// 4. A corrupt record is an operator problem, not something to paper
	// over with defaults.
	if err := validatePayment(payment); err != nil {
		return nil, err
	}

	// 5. Already issued? Repair missing event linkage and stop; no status
	// writes, no emails, no counters.
	if existing, err := repo.GetPassByPaymentID(ctx, s.DB, orderID); err == nil {
		if existing.EventIDs == "" {
			if ids := s.resolveEventIDs(ctx, payment); ids != "" {
				if err := repo.BackfillPassEventIDs(ctx, s.DB, existing.ID, ids); err != nil {
					s.Log.Warn().Err(err).Str("pass_id", existing.ID).Msg("event linkage backfill failed")
				}
			}
		}
		span.SetAttributes(attribute.Bool("pass.already_issued", true))
		return &ReconcileResult{PassID: existing.ID, QRCode: existing.QRCode, AlreadyIssued: true}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// 6. Flip the payment to success. Idempotent set; a re-run after a
	// partial failure lands here again harmlessly.
	if err := repo.MarkPaymentSuccess(ctx, s.DB, orderID); err != nil {
		return nil, err
	}

	// 7. Build the pass. The id is assigned up front so the QR token, which
	// embeds it, can be rendered before the insert.
	pass := &domain.Pass{
		ID:        uuid.NewString(),
		PaymentID: orderID,
		UserID:    payment.UserID,
		PassType:  payment.PassType,
		Status:    domain.PassPaid,
		TeamID:    payment.TeamID,
		EventIDs:  s.resolveEventIDs(ctx, payment),
	}
	pass.QRCode = notify.QRToken(pass.ID, pass.UserID, pass.PassType)

	// 8. Conditional insert: the unique index on payment_id is the arbiter
	// for concurrent reconciliations of the same order.
	if err := repo.CreatePassIfAbsent(ctx, s.DB, pass); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			winner, rerr := repo.GetPassByPaymentID(ctx, s.DB, orderID)
			if rerr != nil {
				return nil, rerr
			}
			span.SetAttributes(attribute.Bool("pass.already_issued", true))
			return &ReconcileResult{PassID: winner.ID, QRCode: winner.QRCode, AlreadyIssued: true}, nil
		}
		return nil, err
	}

	// 9. Team linkage for group pass types.
	if payment.TeamID != nil && *payment.TeamID != "" {
		if err := repo.LinkTeamPass(ctx, s.DB, *payment.TeamID, pass.ID); err != nil {
			s.Log.Warn().Err(err).Str("team_id", *payment.TeamID).Str("pass_id", pass.ID).
				Msg("team pass linkage failed")
		}
	}

	// 10. Best-effort side effects, detached from the request. Failures are
	// logged, never surfaced: the pass is already issued.
	s.dispatch(func() { s.runSideEffects(pass) })

	span.SetAttributes(attribute.Bool("pass.already_issued", false))
	return &ReconcileResult{PassID: pass.ID, QRCode: pass.QRCode, AlreadyIssued: false}, nil
}

// dispatch runs f via Spawn, or a goroutine when none was configured.
func (s *ReconcileService) dispatch(f func()) {
	if s.Spawn != nil {
		s.Spawn(f)
		return
	}
	go f()
}

// runSideEffects refreshes the owner's dashboard aggregate and sends the
// confirmation email. Both are best-effort.
func (s *ReconcileService) runSideEffects(pass *domain.Pass) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if stats, err := repo.UserDashboardStats(ctx, s.DB, pass.UserID); err != nil {
		s.Log.Warn().Err(err).Str("user_id", pass.UserID).Msg("dashboard refresh failed")
	} else {
		s.Log.Info().
			Str("user_id", pass.UserID).
			Int64("payments", stats.Payments).
			Int64("passes", stats.Passes).
			Msg("dashboard refreshed after pass issuance")
	}

	if s.Mailer == nil {
		return
	}
	email := ""
	if s.Emails != nil {
		email = s.Emails.Email(ctx, pass.UserID)
	}
	if email == "" {
		s.Log.Debug().Str("user_id", pass.UserID).Msg("no email on file, skipping confirmation")
		return
	}
	err := s.Mailer.SendPassConfirmation(ctx, notify.PassIssued{
		PassID:   pass.ID,
		UserID:   pass.UserID,
		Email:    email,
		PassType: pass.PassType,
		QRCode:   pass.QRCode,
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("pass_id", pass.ID).Msg("confirmation email failed")
	}
}

// resolveEventIDs returns the JSON-encoded event id list for a payment: the
// payment's explicit list when present, otherwise every event whose allowed
// pass types include the payment's pass type. Resolution failures degrade to
// an empty linkage; the already-issued path backfills later.
func (s *ReconcileService) resolveEventIDs(ctx context.Context, payment *domain.Payment) string {
	if payment.EventIDs != "" {
		return payment.EventIDs
	}
	events, err := repo.ListEventsForPassType(ctx, s.DB, payment.PassType)
	if err != nil {
		s.Log.Warn().Err(err).Str("pass_type", payment.PassType).Msg("event resolution failed")
		return ""
	}
	if len(events) == 0 {
		return ""
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	buf, _ := json.Marshal(ids)
	return string(buf)
}

// validatePayment checks the fields reconciliation cannot proceed without.
func validatePayment(p *domain.Payment) error {
	switch {
	case p.UserID == "":
		return &PaymentCorruptError{OrderID: p.OrderID, Field: "user_id"}
	case p.PassType == "":
		return &PaymentCorruptError{OrderID: p.OrderID, Field: "pass_type"}
	case p.Amount <= 0:
		return &PaymentCorruptError{OrderID: p.OrderID, Field: "amount"}
	}
	return nil
}
