package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGate_AllowThenRejectWithRetryAfter(t *testing.T) {
	store := newMemStore()
	gate := NewGate(NewLimiter(store, "edge", time.Second))

	// Scan budget is 10/min; the 11th request must carry retry metadata.
	var last Decision
	for i := 0; i < CategoryScan.Limit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/passes/scan", nil)
		req.Header.Set("X-Forwarded-For", "1.2.3.4")
		last = gate.Evaluate(req)
	}
	if last.Allowed {
		t.Fatalf("request over budget allowed: %+v", last)
	}
	if last.Category != "scan" || last.Limit != CategoryScan.Limit || last.Remaining != 0 {
		t.Fatalf("unexpected decision: %+v", last)
	}
	if last.RetryAfterSeconds < 1 || last.RetryAfterSeconds > int(CategoryScan.Window.Seconds()) {
		t.Fatalf("retry-after out of range: %d", last.RetryAfterSeconds)
	}
}

func TestGate_RetryAfterFlooredAtOneSecond(t *testing.T) {
	store := newMemStore()
	lim := NewLimiter(store, "edge", time.Second)
	gate := NewGate(lim)

	// Burn a sub-second window so ceil(resetMs/1000) would round to < 1
	// without the floor.
	cat := Category{Name: "scan", Limit: 0, Window: 300 * time.Millisecond}
	res := lim.Check(context.Background(), cat, "uid:u1")
	if res.Allowed {
		t.Fatalf("limit 0 should reject")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/passes/scan", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	// Exhaust the real scan budget to force a rejection through the gate.
	for i := 0; i < CategoryScan.Limit+1; i++ {
		_ = gate.Evaluate(req)
	}
	d := gate.Evaluate(req)
	if d.Allowed {
		t.Fatalf("expected rejection")
	}
	if d.RetryAfterSeconds < 1 {
		t.Fatalf("retry-after must be floored at 1, got %d", d.RetryAfterSeconds)
	}
}

func TestGate_StoreFailureAllowsEverything(t *testing.T) {
	store := newMemStore()
	gate := NewGate(NewLimiter(store, "edge", time.Second))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/passes/scan", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	for i := 0; i < CategoryScan.Limit+1; i++ {
		_ = gate.Evaluate(req)
	}

	// Break the store; prior counts no longer matter.
	store.fail = context.DeadlineExceeded
	for i := 0; i < 20; i++ {
		if d := gate.Evaluate(req); !d.Allowed {
			t.Fatalf("evaluate %d should be allowed while store is down", i+1)
		}
	}
}
