// Package webhook authenticates inbound payment-gateway callbacks.
//
// The gateway signs each delivery as HMAC-SHA256(secret, timestamp || body),
// base64-encoded, and sends the timestamp and signature in headers. A webhook
// may trigger payment reconciliation, so nothing downstream runs until the
// signature verifies. Comparison uses hmac.Equal to keep signature checking
// constant-time.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// Header names used by the gateway on callback deliveries.
const (
	HeaderTimestamp = "x-webhook-timestamp"
	HeaderSignature = "x-webhook-signature"
)

// Verify reports whether signature matches HMAC-SHA256(secret, timestamp+body).
// A missing secret, timestamp, or signature always fails verification.
func Verify(secret, timestamp, signature string, body []byte) bool {
	if secret == "" || timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(want), []byte(signature))
}

// Payload is the gateway's callback body shape. Only the fields the
// reconciliation path needs are modeled.
type Payload struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			PaymentStatus string `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// ParsePayload decodes a verified callback body.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Sign computes the signature the gateway would attach to (timestamp, body).
// Exported for tests and for the local webhook simulator tooling.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
