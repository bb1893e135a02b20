package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
)

// LedgerHandler exposes ledger operations and views over HTTP.
type LedgerHandler struct {
	ledger  *ledger.Ledger
	timeout time.Duration
}

func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l, timeout: 15 * time.Second}
}

// callerOf returns the ledger principal for the authenticated request.
// Only relayer tokens act as the in-process principal; any other token that
// names it is treated as anonymous.
func callerOf(c *gin.Context) string {
	if c.GetString("role") == dto.RoleRelayer {
		return ledger.SelfPrincipal
	}
	account := c.GetString("account")
	if ledger.IsReservedPrincipal(account) {
		return ""
	}
	return account
}

func (h *LedgerHandler) opContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// errorStatus maps ledger errors to HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrAccessDenied):
		return http.StatusForbidden, "ACCESS_DENIED"
	case errors.Is(err, ledger.ErrSubsystemPaused):
		return http.StatusConflict, "SUBSYSTEM_PAUSED"
	case errors.Is(err, ledger.ErrAlreadyReconciled):
		return http.StatusConflict, "ALREADY_RECONCILED"
	case errors.Is(err, ledger.ErrUnknownRequest):
		return http.StatusNotFound, "UNKNOWN_REQUEST"
	case errors.Is(err, ledger.ErrOverflow):
		return http.StatusBadRequest, "OVERFLOW"
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, ledger.ErrTokenNotWhitelisted):
		return http.StatusUnprocessableEntity, "TOKEN_NOT_WHITELISTED"
	case errors.Is(err, ledger.ErrAmountTooSmall):
		return http.StatusUnprocessableEntity, "AMOUNT_TOO_SMALL"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	case errors.Is(err, ledger.ErrContactNotAuthorized):
		return http.StatusUnprocessableEntity, "CONTACT_NOT_AUTHORIZED"
	case errors.Is(err, ledger.ErrDistributionExhausted):
		return http.StatusUnprocessableEntity, "DISTRIBUTION_EXHAUSTED"
	case errors.Is(err, ledger.ErrSwapNotAllowed):
		return http.StatusUnprocessableEntity, "SWAP_NOT_ALLOWED"
	case errors.Is(err, ledger.ErrExternalCallFailed):
		return http.StatusBadGateway, "EXTERNAL_CALL_FAILED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// fail writes a ledger error and counts the failed operation.
func fail(c *gin.Context, op string, err error) {
	status, code := errorStatus(err)
	metrics.LedgerOperations.WithLabelValues(op, "error").Inc()
	if status >= http.StatusInternalServerError {
		log.Printf("❌ [Ledger] %s failed: %v", op, err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    "INVALID_REQUEST",
	})
}

func ok(c *gin.Context, op string, data gin.H) {
	if op != "" {
		metrics.LedgerOperations.WithLabelValues(op, "ok").Inc()
	}
	data["success"] = true
	c.JSON(http.StatusOK, data)
}

// request-issuing operations answer 202 with the pending request
func accepted(c *gin.Context, op string, req ledger.Request) {
	metrics.LedgerOperations.WithLabelValues(op, "ok").Inc()
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"request": dto.RequestMessage(req),
	})
}
