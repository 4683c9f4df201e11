// Package notify holds the side-effect collaborators of the reconciliation
// engine: confirmation email delivery and QR/pdf rendering. These are opaque
// externals to the core subsystem; the engine only needs interfaces it can
// call best-effort and mock in tests.
package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PassIssued describes a freshly issued pass for notification rendering.
type PassIssued struct {
	PassID   string
	UserID   string
	Email    string
	PassType string
	QRCode   string
}

// Mailer sends the confirmation email with the rendered pass attached.
// Implementations must be safe for concurrent use. Errors are logged and
// swallowed by callers; delivery is best-effort by contract.
type Mailer interface {
	SendPassConfirmation(ctx context.Context, p PassIssued) error
}

// LogMailer is the default Mailer: it logs the send instead of delivering.
// Deployments wire a real provider behind the same interface.
type LogMailer struct {
	Log zerolog.Logger
}

// SendPassConfirmation logs the would-be delivery.
func (m LogMailer) SendPassConfirmation(_ context.Context, p PassIssued) error {
	m.Log.Info().
		Str("pass_id", p.PassID).
		Str("user_id", p.UserID).
		Str("email", p.Email).
		Str("subject", ConfirmationSubject(p.PassType)).
		Msg("pass confirmation email (log mailer)")
	return nil
}

// ConfirmationSubject renders the email subject line for a pass type,
// turning the stored snake_case type into a display title ("day_pass" →
// "Day Pass").
func ConfirmationSubject(passType string) string {
	display := cases.Title(language.English).String(strings.ReplaceAll(passType, "_", " "))
	return "Your " + display + " is confirmed"
}

// QRToken renders the redemption token embedded in the pass QR code: a
// compact base64url JSON document carrying the pass id, owner, and type.
// Scanners decode it offline; validity is re-checked server-side at the gate.
func QRToken(passID, userID, passType string) string {
	payload, _ := json.Marshal(map[string]string{
		"pass_id":   passID,
		"user_id":   userID,
		"pass_type": passType,
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeQRToken reverses QRToken. Used by the scan endpoint and tests.
func DecodeQRToken(token string) (passID, userID, passType string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", "", err
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", "", "", err
	}
	return m["pass_id"], m["user_id"], m["pass_type"], nil
}
