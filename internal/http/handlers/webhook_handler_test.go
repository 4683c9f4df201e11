package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nkoutso/festpass-admin/internal/services"
	"github.com/nkoutso/festpass-admin/internal/webhook"
)

func webhookBody(eventType, orderID string) string {
	return fmt.Sprintf(`{"type":%q,"data":{"order":{"order_id":%q},"payment":{"payment_status":"SUCCESS"}}}`, eventType, orderID)
}

func signedHeaders(secret, body string) map[string]string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	return map[string]string{
		webhook.HeaderTimestamp: ts,
		webhook.HeaderSignature: webhook.Sign(secret, ts, []byte(body)),
	}
}

func TestPaymentWebhook_ValidSignature_Reconciles(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("PAYMENT_SUCCESS_WEBHOOK", "ord_wh")

	w := f.do(t, http.MethodPost, "/api/v1/webhooks/payment", body, signedHeaders(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if f.reconcile.calls != 1 || f.reconcile.lastID != "ord_wh" {
		t.Fatalf("reconcile calls=%d lastID=%q", f.reconcile.calls, f.reconcile.lastID)
	}
	if f.webhooks.recorded != 1 {
		t.Fatalf("audit rows = %d, want 1", f.webhooks.recorded)
	}
	if !strings.Contains(w.Body.String(), `"handled":true`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestPaymentWebhook_InvalidSignature_401NoProcessing(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("PAYMENT_SUCCESS_WEBHOOK", "ord_wh")

	cases := map[string]map[string]string{
		"no headers":  {},
		"wrong sig":   {webhook.HeaderTimestamp: "1700000000", webhook.HeaderSignature: "Zm9yZ2Vk"},
		"wrong key":   signedHeaders("other_secret", body),
		"tampered ts": {webhook.HeaderTimestamp: "999", webhook.HeaderSignature: webhook.Sign(testWebhookSecret, "1700000000", []byte(body))},
	}
	for name, hdrs := range cases {
		w := f.do(t, http.MethodPost, "/api/v1/webhooks/payment", body, hdrs)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"code":"invalid_signature"`) {
			t.Fatalf("%s: body = %s", name, w.Body.String())
		}
	}
	if f.reconcile.calls != 0 || f.webhooks.recorded != 0 {
		t.Fatalf("forged deliveries reached processing: calls=%d recorded=%d", f.reconcile.calls, f.webhooks.recorded)
	}
}

func TestPaymentWebhook_NonSuccessEvent_AcknowledgedAndSkipped(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("PAYMENT_FAILED_WEBHOOK", "ord_wh")

	w := f.do(t, http.MethodPost, "/api/v1/webhooks/payment", body, signedHeaders(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if f.reconcile.calls != 0 {
		t.Fatalf("reconcile ran for a non-success event")
	}
	if f.webhooks.recorded != 1 {
		t.Fatalf("skipped event must still be audited")
	}
	if !strings.Contains(w.Body.String(), `"handled":false`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestPaymentWebhook_TerminalRefusalsReturn200(t *testing.T) {
	// The gateway retries non-2xx; a permanently-refused order must not loop.
	for _, err := range []error{
		&services.OrderNotPaidError{Status: "ACTIVE"},
		services.ErrPaymentNotFound,
		&services.PaymentCorruptError{OrderID: "ord_wh", Field: "user_id"},
	} {
		f := newFixture(t)
		f.reconcile.err = err
		body := webhookBody("PAYMENT_SUCCESS_WEBHOOK", "ord_wh")

		w := f.do(t, http.MethodPost, "/api/v1/webhooks/payment", body, signedHeaders(testWebhookSecret, body))
		if w.Code != http.StatusOK {
			t.Fatalf("%v: status = %d, want 200", err, w.Code)
		}
		if len(f.webhooks.processed) != 1 || f.webhooks.processed[0] == "" {
			t.Fatalf("%v: processing error not recorded: %v", err, f.webhooks.processed)
		}
	}
}

func TestPaymentWebhook_RetryableFailureReturns5xx(t *testing.T) {
	f := newFixture(t)
	f.reconcile.err = services.ErrGatewayUnreachable
	body := webhookBody("PAYMENT_SUCCESS_WEBHOOK", "ord_wh")

	w := f.do(t, http.MethodPost, "/api/v1/webhooks/payment", body, signedHeaders(testWebhookSecret, body))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 so the gateway retries", w.Code)
	}
}

func TestPaymentWebhook_UnparseableBody(t *testing.T) {
	f := newFixture(t)
	body := `{"type":`

	w := f.do(t, http.MethodPost, "/api/v1/webhooks/payment", body, signedHeaders(testWebhookSecret, body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
