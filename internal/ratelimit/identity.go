// Package ratelimit implements the distributed request-throttling layer:
// a best-effort identity extractor, a fixed category classifier, a
// Redis-backed sliding-window limiter, and the gate that composes them.
//
// The package is deployed at two independent points (edge middleware and
// per-route guards) with separate key namespaces. Both enforcement points
// degrade to "allow" whenever the counter store is unreachable: the limiter
// is an abuse control, not an authorization mechanism, so availability wins.
package ratelimit

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nkoutso/festpass-admin/internal/sysutil"
)

// IdentityFromRequest derives a best-effort caller identity for rate-limit
// bucketing. It never fails and never verifies anything.
//
// Preference order:
//  1. "uid:<claim>": an Authorization bearer token that looks like a signed
//     token (three dot-separated segments) has its middle segment decoded as
//     base64url JSON and the user-identifier claim read ("user_id" first,
//     "sub" as fallback). The signature is deliberately NOT verified: full
//     verification already happens downstream in the auth layer, and for
//     bucketing the worst a forged claim buys is its own bucket (no worse
//     than IP keying, and strictly better for users behind shared NAT).
//  2. "ip:<addr>": first comma-separated entry of X-Forwarded-For, then
//     X-Real-IP, then the literal "anonymous".
func IdentityFromRequest(r *http.Request) string {
	if uid := bearerClaim(r.Header.Get("Authorization")); uid != "" {
		return "uid:" + uid
	}

	xff := strings.TrimSpace(strings.SplitN(r.Header.Get("X-Forwarded-For"), ",", 2)[0])
	rip := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	return "ip:" + sysutil.FirstNonEmpty(xff, rip, "anonymous")
}

// bearerClaim extracts the user-identifier claim from an unverified bearer
// token, returning "" when the header is absent or the token is malformed.
// Malformed input silently falls through to the IP path.
func bearerClaim(authz string) string {
	const prefix = "Bearer "
	if len(authz) <= len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return ""
	}
	token := strings.TrimSpace(authz[len(prefix):])

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}

	var claims struct {
		UserID string `json:"user_id"`
		Sub    string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Sub
}
