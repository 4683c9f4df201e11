// Package ratelimit: the gate that turns classifier + extractor + limiter
// into a single allow/reject decision with retry metadata.
package ratelimit

import (
	"math"
	"net/http"
)

// Decision is the outcome of evaluating one request against a gate.
type Decision struct {
	Allowed           bool
	Category          string
	Limit             int
	Remaining         int
	RetryAfterSeconds int // meaningful only when !Allowed; always >= 1 then
}

// Gate composes Classify, IdentityFromRequest, and a layer-scoped Limiter.
//
// Two gates run in production: one as edge middleware in front of the admin
// API, and one invoked as the first statement inside each route handler.
// They are constructed separately with distinct layer names; removing either
// merely weakens defense-in-depth, it never breaks correctness.
type Gate struct {
	limiter *Limiter
}

// NewGate wraps a layer-scoped limiter.
func NewGate(limiter *Limiter) *Gate {
	return &Gate{limiter: limiter}
}

// Evaluate classifies the request, derives an identity, and checks the
// budget. It never returns an error: counter-store trouble surfaces as an
// allowed decision inside the limiter.
func (g *Gate) Evaluate(r *http.Request) Decision {
	cat := Classify(r.Method, r.URL.Path, r.URL.Query())
	identity := IdentityFromRequest(r)

	res := g.limiter.Check(r.Context(), cat, identity)
	d := Decision{
		Allowed:   res.Allowed,
		Category:  cat.Name,
		Limit:     res.Limit,
		Remaining: res.Remaining,
	}
	if !res.Allowed {
		secs := int(math.Ceil(float64(res.ResetAfter.Milliseconds()) / 1000.0))
		if secs < 1 {
			secs = 1
		}
		d.RetryAfterSeconds = secs
		d.Remaining = 0
	}
	return d
}
