// Pass HTTP handlers.
//
// This file exposes REST endpoints for the pass lifecycle:
//   - GET  /passes/:id               (fetch)
//   - POST /passes/:id/redeem        (gate redemption, paid→used)
//   - POST /passes/scan              (QR token scan + redeem)
//   - POST /admin/passes/:id/revert  (undo accidental scan, used→paid)
//
// Scan and redeem are the hottest endpoints in the system during gate-open
// hours, so both run the per-route gate before any other work.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nkoutso/festpass-admin/internal/services"
)

// ScanRequest is the JSON payload for QR-token scanning.
type ScanRequest struct {
	Token string `json:"token" binding:"required"`
}

// GetPass handles GET /passes/:id.
func (h *Handlers) GetPass(c *gin.Context) {
	p, err := h.passSvc.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrPassNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "pass not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load pass")
	default:
		ok(c, http.StatusOK, p)
	}
}

// RedeemPass handles POST /passes/:id/redeem.
func (h *Handlers) RedeemPass(c *gin.Context) {
	if !h.checkRouteGate(c) {
		return
	}

	p, err := h.passSvc.Redeem(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrPassNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "pass not found")
	case errors.Is(err, services.ErrPassAlreadyUsed):
		fail(c, http.StatusConflict, ErrCodePassUsed, "pass was already redeemed")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not redeem pass")
	default:
		ok(c, http.StatusOK, p)
	}
}

// ScanPass handles POST /passes/scan.
func (h *Handlers) ScanPass(c *gin.Context) {
	if !h.checkRouteGate(c) {
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token is required")
		return
	}

	p, err := h.passSvc.Scan(c.Request.Context(), req.Token)
	switch {
	case errors.Is(err, services.ErrBadQRToken):
		fail(c, http.StatusBadRequest, ErrCodeBadQRToken, "token is malformed or does not match the pass")
	case errors.Is(err, services.ErrPassNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "pass not found")
	case errors.Is(err, services.ErrPassAlreadyUsed):
		fail(c, http.StatusConflict, ErrCodePassUsed, "pass was already redeemed")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not scan pass")
	default:
		ok(c, http.StatusOK, p)
	}
}

// RevertPass handles POST /admin/passes/:id/revert.
func (h *Handlers) RevertPass(c *gin.Context) {
	p, err := h.passSvc.Revert(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrPassNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "pass not found")
	case errors.Is(err, services.ErrPassNotUsed):
		fail(c, http.StatusConflict, ErrCodePassNotUsed, "pass has not been redeemed")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not revert pass")
	default:
		ok(c, http.StatusOK, p)
	}
}
