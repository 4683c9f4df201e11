package webhook

import "testing"

func TestVerify_MatchingSignature(t *testing.T) {
	body := []byte(`{"data":{"order":{"order_id":"ord_1"},"payment":{"payment_status":"SUCCESS"}}}`)
	sig := Sign("whsec", "1720000000", body)
	if !Verify("whsec", "1720000000", sig, body) {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerify_RejectsMismatches(t *testing.T) {
	body := []byte(`{"data":{}}`)
	valid := Sign("whsec", "1720000000", body)

	cases := []struct {
		name      string
		secret    string
		timestamp string
		signature string
		body      []byte
	}{
		{"wrong signature", "whsec", "1720000000", "bm90LXRoZS1zaWc=", body},
		{"empty signature", "whsec", "1720000000", "", body},
		{"missing timestamp", "whsec", "", valid, body},
		{"missing secret", "", "1720000000", valid, body},
		{"tampered body", "whsec", "1720000000", valid, []byte(`{"data":{"x":1}}`)},
		{"tampered timestamp", "whsec", "1720000001", valid, body},
		{"truncated signature", "whsec", "1720000000", valid[:len(valid)-2], body},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if Verify(c.secret, c.timestamp, c.signature, c.body) {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestParsePayload(t *testing.T) {
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"ord_7"},"payment":{"payment_status":"SUCCESS"}}}`)
	p, err := ParsePayload(body)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Data.Order.OrderID != "ord_7" || p.Data.Payment.PaymentStatus != "SUCCESS" {
		t.Fatalf("unexpected payload: %+v", p)
	}

	if _, err := ParsePayload([]byte("{")); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
