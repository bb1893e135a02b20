package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// PendingProcessor runs a redelivery pass.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// RequestDeliverer re-sends one settlement request.
type RequestDeliverer interface {
	Deliver(ctx context.Context, req ledger.Request) error
}

// RequestLookup finds settlement requests.
type RequestLookup interface {
	RequestByID(id string) (ledger.Request, bool)
}

// RetryHandler 手动重投结算请求 (admin)
type RetryHandler struct {
	requests  RequestLookup
	deliverer RequestDeliverer
	pending   PendingProcessor
}

func NewRetryHandler(requests RequestLookup, deliverer RequestDeliverer, pending PendingProcessor) *RetryHandler {
	return &RetryHandler{requests: requests, deliverer: deliverer, pending: pending}
}

// RedeliverPendingHandler POST /api/v1/admin/settlement/redeliver
// Runs one redelivery pass now instead of waiting for the ticker.
func (h *RetryHandler) RedeliverPendingHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	n, err := h.pending.ProcessPending(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "REDELIVERY_FAILED",
		})
		return
	}
	log.Printf("🔄 [Admin] Manual redelivery pass: %d request(s) re-sent", n)
	c.JSON(http.StatusOK, gin.H{"success": true, "redelivered": n})
}

// RetryRequestHandler POST /api/v1/admin/settlement/:id/retry
// Re-sends a single pending request regardless of its backoff.
func (h *RetryHandler) RetryRequestHandler(c *gin.Context) {
	req, found := h.requests.RequestByID(c.Param("id"))
	if !found {
		fail(c, "retry", ledger.ErrUnknownRequest)
		return
	}
	if !req.Pending() {
		fail(c, "retry", ledger.ErrAlreadyReconciled)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()
	if err := h.deliverer.Deliver(ctx, req); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "DELIVERY_FAILED",
		})
		return
	}
	log.Printf("🔄 [Admin] %s %s re-sent", req.Kind, req.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "request": dto.RequestMessage(req)})
}
