package handlers

import (
	"log"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
)

// SettlementOutcomeHandler POST /api/v1/settlement/:id/outcome
// HTTP callback for relayers that do not use the bus.
func (h *LedgerHandler) SettlementOutcomeHandler(c *gin.Context) {
	var msg dto.SettlementOutcomeMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, err)
		return
	}
	msg.RequestID = c.Param("id")
	out, err := msg.ToOutcome()
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := h.ledger.Reconcile(ctx, callerOf(c), msg.RequestID, out)
	if err != nil {
		fail(c, "reconcile", err)
		return
	}
	metrics.SettlementOutcomes.WithLabelValues(string(r.Operation), string(r.Status)).Inc()
	log.Printf("✅ [Settlement] %s %s -> %s (http)", r.Kind, r.ID, r.Status)
	ok(c, "reconcile", gin.H{"request": dto.RequestMessage(r)})
}
