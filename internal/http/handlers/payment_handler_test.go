package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/nkoutso/festpass-admin/internal/services"
)

func TestCreateOrder_Created(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","pass_type":"day_pass","amount":500,"event_ids":["ev-1","ev-2"]}`, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var sess services.OrderSession
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.OrderID != "ord_test" || sess.SessionID != "sess_test" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if f.orders.lastIn.EventIDs != `["ev-1","ev-2"]` {
		t.Fatalf("event ids encoding = %q", f.orders.lastIn.EventIDs)
	}
}

func TestCreateOrder_ValidationAndGatewayErrors(t *testing.T) {
	f := newFixture(t)

	// Missing required fields → 400 before the service is touched.
	w := f.do(t, http.MethodPost, "/api/v1/orders", `{"user_id":"u1"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: status = %d", w.Code)
	}

	// Gateway down → 502 with the domain code.
	f.orders.createErr = services.ErrGatewayUnreachable
	w = f.do(t, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","pass_type":"day_pass","amount":500}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("gateway down: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"gateway_unreachable"`) {
		t.Fatalf("gateway down body: %s", w.Body.String())
	}
}

func TestVerifyPayment_RequiresAuthMarker(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/payments/verify", `{"order_id":"ord_1"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d", w.Code)
	}
	if f.reconcile.calls != 0 {
		t.Fatalf("reconcile ran without auth")
	}

	// Bearer token passes.
	w = f.do(t, http.MethodPost, "/api/v1/payments/verify", `{"order_id":"ord_1"}`,
		map[string]string{"Authorization": "Bearer tok"})
	if w.Code != http.StatusOK {
		t.Fatalf("bearer: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Internal service marker passes too.
	w = f.do(t, http.MethodPost, "/api/v1/payments/verify", `{"order_id":"ord_2"}`,
		map[string]string{"X-Internal-Service": testInternalToken})
	if w.Code != http.StatusOK {
		t.Fatalf("service marker: status = %d", w.Code)
	}
	if f.reconcile.lastID != "ord_2" {
		t.Fatalf("order id not forwarded: %q", f.reconcile.lastID)
	}

	// Wrong marker does not.
	w = f.do(t, http.MethodPost, "/api/v1/payments/verify", `{"order_id":"ord_3"}`,
		map[string]string{"X-Internal-Service": "guess"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong marker: status = %d", w.Code)
	}
}

func TestVerifyPayment_ErrorMapping(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer tok"}
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"gateway down", services.ErrGatewayUnreachable, http.StatusBadGateway, "gateway_unreachable"},
		{"not paid", &services.OrderNotPaidError{Status: "ACTIVE"}, http.StatusBadRequest, "order_not_paid"},
		{"no payment", services.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
		{"corrupt", &services.PaymentCorruptError{OrderID: "ord_1", Field: "amount"}, http.StatusInternalServerError, "payment_record_corrupt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.reconcile.err = tc.err

			w := f.do(t, http.MethodPost, "/api/v1/payments/verify", `{"order_id":"ord_1"}`, auth)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"code":"`+tc.wantCode+`"`) {
				t.Fatalf("body = %s, want code %s", w.Body.String(), tc.wantCode)
			}
		})
	}
}

func TestListPayments_PaginationEnvelope(t *testing.T) {
	f := newFixture(t)
	f.orders.listTotal = 45

	w := f.do(t, http.MethodGet, "/api/v1/payments?page=2&page_size=20", "",
		map[string]string{"X-User-ID": "u9"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp ListPaymentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := resp.Pagination
	if p.Page != 2 || p.PageSize != 20 || p.Total != 45 || p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("pagination = %+v", p)
	}
}

func TestOverrideStatus_Mapping(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/v1/admin/payments/ord_1/status", `{"status":"failed"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	f.orders.overrideErr = services.ErrPaymentNotFound
	w = f.do(t, http.MethodPut, "/api/v1/admin/payments/ord_x/status", `{"status":"failed"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown order: status = %d", w.Code)
	}

	f.orders.overrideErr = services.ErrInvalidOrder
	w = f.do(t, http.MethodPut, "/api/v1/admin/payments/ord_1/status", `{"status":"refunded"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad status value: status = %d", w.Code)
	}
}

func TestDashboard_ReturnsAggregate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/admin/dashboard", "", map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"payments":2`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}
