package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nkoutso/festpass-admin/internal/domain"
	"github.com/nkoutso/festpass-admin/internal/repo"
	"github.com/nkoutso/festpass-admin/internal/services"
)

//
// Fakes
//

type fakeOrderSvc struct {
	createErr   error
	overrideErr error
	listTotal   int64
	lastIn      services.NewOrder
}

func (f *fakeOrderSvc) Create(_ context.Context, in services.NewOrder) (*services.OrderSession, error) {
	f.lastIn = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &services.OrderSession{OrderID: "ord_test", SessionID: "sess_test"}, nil
}

func (f *fakeOrderSvc) RecordOnspot(_ context.Context, in services.NewOrder, recordedBy string) (*domain.OnspotPayment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.OnspotPayment{
		Payment:    domain.Payment{OrderID: "onspot_test", UserID: in.UserID, Status: domain.PaymentSuccess},
		RecordedBy: recordedBy,
	}, nil
}

func (f *fakeOrderSvc) OverrideStatus(context.Context, string, string) error { return f.overrideErr }

func (f *fakeOrderSvc) ListPayments(_ context.Context, userID string, page, pageSize int) ([]domain.Payment, int64, error) {
	out := make([]domain.Payment, 0, pageSize)
	for i := 0; i < pageSize && int64(i) < f.listTotal; i++ {
		out = append(out, domain.Payment{UserID: userID, Status: domain.PaymentPending})
	}
	return out, f.listTotal, nil
}

func (f *fakeOrderSvc) Dashboard(context.Context, string) (repo.UserStats, error) {
	return repo.UserStats{Payments: 2, Successful: 1, Passes: 1}, nil
}

type fakeReconcileSvc struct {
	res    *services.ReconcileResult
	err    error
	calls  int
	lastID string
}

func (f *fakeReconcileSvc) Reconcile(_ context.Context, orderID string) (*services.ReconcileResult, error) {
	f.calls++
	f.lastID = orderID
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &services.ReconcileResult{PassID: "pass_test", QRCode: "qr_test"}, nil
}

type fakePassSvc struct {
	pass *domain.Pass
	err  error
}

func (f *fakePassSvc) Get(context.Context, string) (*domain.Pass, error)    { return f.pass, f.err }
func (f *fakePassSvc) Redeem(context.Context, string) (*domain.Pass, error) { return f.pass, f.err }
func (f *fakePassSvc) Revert(context.Context, string) (*domain.Pass, error) { return f.pass, f.err }
func (f *fakePassSvc) Scan(context.Context, string) (*domain.Pass, error)   { return f.pass, f.err }

type fakeWebhookSvc struct {
	recorded  int
	processed []string
}

func (f *fakeWebhookSvc) Record(context.Context, string, string, string, string) (string, error) {
	f.recorded++
	return "evt_test", nil
}

func (f *fakeWebhookSvc) MarkProcessed(_ context.Context, _ string, procErr string) error {
	f.processed = append(f.processed, procErr)
	return nil
}

//
// Harness
//

const testWebhookSecret = "whsec_test"
const testInternalToken = "svc_token_test"

type fixture struct {
	orders    *fakeOrderSvc
	reconcile *fakeReconcileSvc
	passes    *fakePassSvc
	webhooks  *fakeWebhookSvc
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		orders:    &fakeOrderSvc{},
		reconcile: &fakeReconcileSvc{},
		passes:    &fakePassSvc{},
		webhooks:  &fakeWebhookSvc{},
	}
	// nil route gate: rate limiting is covered by the middleware tests.
	h := New(f.orders, f.reconcile, f.passes, f.webhooks, nil, testWebhookSecret, testInternalToken)

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/orders", h.CreateOrder)
	api.POST("/payments/verify", h.VerifyPayment)
	api.GET("/payments", h.ListPayments)
	api.POST("/webhooks/payment", h.PaymentWebhook)
	api.GET("/passes/:id", h.GetPass)
	api.POST("/passes/:id/redeem", h.RedeemPass)
	api.POST("/passes/scan", h.ScanPass)
	api.GET("/admin/dashboard", h.Dashboard)
	api.POST("/admin/onspot", h.RecordOnspot)
	api.PUT("/admin/payments/:orderID/status", h.OverrideStatus)
	api.POST("/admin/passes/:id/revert", h.RevertPass)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, hdrs map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdrs {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}
