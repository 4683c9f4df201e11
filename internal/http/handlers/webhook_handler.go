// Webhook HTTP handler.
//
// This file exposes the gateway callback endpoint:
//   - POST /webhooks/payment
//
// Every delivery is HMAC-verified before anything else runs; forged or
// unsigned deliveries get a 401 and leave no trace beyond the access log.
// Verified deliveries are recorded in the audit trail, payment-success events
// trigger reconciliation, and everything else is acknowledged and skipped.
//
// Response discipline: the gateway retries non-2xx deliveries. A 200 is
// returned whenever the delivery itself was handled, including refused
// reconciliations (order not paid) and no-op skips, so the gateway never
// retries a delivery that will keep failing the same way. Retryable outcomes
// (gateway unreachable, storage errors) return 5xx on purpose.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nkoutso/festpass-admin/internal/http/middleware"
	"github.com/nkoutso/festpass-admin/internal/services"
	"github.com/nkoutso/festpass-admin/internal/webhook"
)

// maxWebhookBody caps the callback body read. Gateway payloads are small
// JSON documents; anything larger is not ours.
const maxWebhookBody = 256 << 10

// paymentSuccessEvent is the gateway event type that triggers reconciliation.
const paymentSuccessEvent = "PAYMENT_SUCCESS_WEBHOOK"

// PaymentWebhook handles POST /webhooks/payment.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read body")
		return
	}

	ts := c.GetHeader(webhook.HeaderTimestamp)
	sig := c.GetHeader(webhook.HeaderSignature)
	if !webhook.Verify(h.webhookSecret, ts, sig, body) {
		fail(c, http.StatusUnauthorized, ErrCodeInvalidSignature, "webhook signature verification failed")
		return
	}

	payload, err := webhook.ParsePayload(body)
	if err != nil || payload.Data.Order.OrderID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unparseable webhook payload")
		return
	}
	orderID := payload.Data.Order.OrderID

	lg := middleware.LoggerFrom(c)

	auditID, err := h.webhookSvc.Record(c.Request.Context(), "gateway", orderID, payload.Type, string(body))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not record delivery")
		return
	}

	// Only success events drive issuance. Everything else is acknowledged so
	// the gateway stops retrying.
	if payload.Type != paymentSuccessEvent {
		_ = h.webhookSvc.MarkProcessed(c.Request.Context(), auditID, "")
		lg.Info().Str("order_id", orderID).Str("event", payload.Type).Msg("webhook skipped")
		ok(c, http.StatusOK, gin.H{"order_id": orderID, "handled": false})
		return
	}

	res, err := h.reconcileSvc.Reconcile(c.Request.Context(), orderID)
	if err != nil {
		_ = h.webhookSvc.MarkProcessed(c.Request.Context(), auditID, err.Error())

		// Terminal refusals are acknowledged; retryable failures are not.
		var notPaid *services.OrderNotPaidError
		var corrupt *services.PaymentCorruptError
		switch {
		case errors.As(err, &notPaid):
			lg.Warn().Str("order_id", orderID).Str("gateway_status", notPaid.Status).
				Msg("webhook for unpaid order refused")
			ok(c, http.StatusOK, gin.H{"order_id": orderID, "handled": false})
		case errors.Is(err, services.ErrPaymentNotFound):
			lg.Warn().Str("order_id", orderID).Msg("webhook for unknown payment")
			ok(c, http.StatusOK, gin.H{"order_id": orderID, "handled": false})
		case errors.As(err, &corrupt):
			lg.Error().Str("order_id", orderID).Str("field", corrupt.Field).
				Msg("webhook reconciliation hit corrupt payment record")
			ok(c, http.StatusOK, gin.H{"order_id": orderID, "handled": false})
		default:
			h.failReconcile(c, err)
		}
		return
	}

	_ = h.webhookSvc.MarkProcessed(c.Request.Context(), auditID, "")
	ok(c, http.StatusOK, gin.H{
		"order_id":       orderID,
		"handled":        true,
		"pass_id":        res.PassID,
		"already_issued": res.AlreadyIssued,
	})
}
