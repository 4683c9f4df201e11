// Package gateway implements the HTTP client for the external payment
// gateway. The gateway is treated strictly as a collaborator: create an order
// and get back a session id, fetch an order and get back its status. All
// calls carry the static credential headers and an API-version header, and
// every call has a hard client-side deadline; a gateway that hangs must
// surface as a retryable failure, never as a stuck handler.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/nkoutso/festpass-admin/internal/config"
)

// OrderStatusPaid is the gateway's authoritative "money received" status.
const OrderStatusPaid = "PAID"

// ErrUnreachable wraps transport-level failures (network errors, timeouts,
// 5xx responses). Callers treat it as retryable.
var ErrUnreachable = errors.New("payment gateway unreachable")

// CreateOrderRequest is the payload for order creation.
type CreateOrderRequest struct {
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"order_amount"`
	Currency      string  `json:"order_currency"`
	CustomerID    string  `json:"customer_id"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	CustomerPhone string  `json:"customer_phone,omitempty"`
	NotifyURL     string  `json:"notify_url,omitempty"`
	ReturnURL     string  `json:"return_url,omitempty"`
}

// CreateOrderResponse carries the payment session id the client hands to the
// gateway's checkout UI.
type CreateOrderResponse struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"payment_session_id"`
}

// Order is the authoritative order state fetched from the gateway.
type Order struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"order_status"`
	Amount  float64 `json:"order_amount"`
}

// Paid reports whether the gateway has confirmed payment.
func (o Order) Paid() bool { return o.Status == OrderStatusPaid }

// Client talks to the payment gateway. Safe for concurrent use.
//
// The outbound limiter is a politeness throttle: reconciliation can be
// triggered by webhooks, polls, and admin clicks at once, and the gateway
// meters API credentials aggressively.
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	apiVersion string
	httpc      *http.Client
	throttle   *rate.Limiter
	notifyURL  string
	returnURL  string
}

// New builds a Client from configuration. The http.Client timeout is the
// hard per-call deadline (default 10s via config).
func New(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		apiVersion: cfg.APIVersion,
		httpc:      &http.Client{Timeout: cfg.Timeout},
		throttle:   rate.NewLimiter(rate.Limit(20), 40), // ~20 rps sustained
		notifyURL:  cfg.NotifyURL,
		returnURL:  cfg.ReturnURL,
	}
}

// CreateOrder registers a new order with the gateway and returns the payment
// session id.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if req.NotifyURL == "" {
		req.NotifyURL = c.notifyURL
	}
	if req.ReturnURL == "" {
		req.ReturnURL = c.returnURL
	}

	var out CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches the authoritative status of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one authenticated gateway call, mapping transport failures and
// 5xx responses to ErrUnreachable and 4xx responses to descriptive errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.secret)
	req.Header.Set("x-api-version", c.apiVersion)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: gateway returned %d", ErrUnreachable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("gateway rejected %s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
