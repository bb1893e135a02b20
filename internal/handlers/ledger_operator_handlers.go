package handlers

import (
	"context"
	"log"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// Operator 操作 (JWT subject == operator)
// ============================================================================

// LinkServiceAccountHandler POST /api/v1/service-accounts/link
func (h *LedgerHandler) LinkServiceAccountHandler(c *gin.Context) {
	h.link(c, "link_service_account", h.ledger.LinkServiceAccount)
}

// UnlinkServiceAccountHandler DELETE /api/v1/service-accounts/link
func (h *LedgerHandler) UnlinkServiceAccountHandler(c *gin.Context) {
	h.link(c, "unlink_service_account", h.ledger.UnlinkServiceAccount)
}

func (h *LedgerHandler) link(c *gin.Context, op string, call func(ctx context.Context, caller, account string, svc ledger.ServiceAccount) error) {
	var req dto.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	svc, err := req.Service.ToLedger()
	if err != nil {
		fail(c, op, err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := call(ctx, callerOf(c), req.Account, svc); err != nil {
		fail(c, op, err)
		return
	}
	log.Printf("🔗 [Ledger] %s %s <-> %s", op, req.Account, svc.Key())
	ok(c, op, gin.H{
		"account":         req.Account,
		"service_account": svc.Key(),
	})
}

// TransferUnclaimedHandler POST /api/v1/service-accounts/transfer
func (h *LedgerHandler) TransferUnclaimedHandler(c *gin.Context) {
	h.serviceTransfer(c, "transfer_unclaimed_tips_to_deposit", h.ledger.TransferUnclaimedToDeposit)
}

// WithdrawFromServiceAccountHandler POST /api/v1/service-accounts/withdraw
func (h *LedgerHandler) WithdrawFromServiceAccountHandler(c *gin.Context) {
	h.serviceTransfer(c, "withdraw_from_service_account", h.ledger.WithdrawFromServiceAccount)
}

func (h *LedgerHandler) serviceTransfer(c *gin.Context, op string, call func(ctx context.Context, caller string, svc ledger.ServiceAccount, token ledger.TokenID) (ledger.ServiceTransfer, error)) {
	var req dto.ServiceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	svc, err := req.Service.ToLedger()
	if err != nil {
		fail(c, op, err)
		return
	}
	token, err := ledger.ParseTokenParam(req.Token)
	if err != nil {
		fail(c, op, err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	res, err := call(ctx, callerOf(c), svc, token)
	if err != nil {
		fail(c, op, err)
		return
	}
	data := gin.H{
		"account":    res.Account,
		"credited":   res.Credited.Dec(),
		"commission": res.Commission.Dec(),
	}
	if res.Request != nil {
		data["request"] = dto.RequestMessage(*res.Request)
	}
	ok(c, op, data)
}

// OnTransferHandler POST /api/v1/ft/on-transfer
// Returns the unused amount the token contract should refund.
func (h *LedgerHandler) OnTransferHandler(c *gin.Context) {
	var req dto.OnTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		fail(c, "ft_on_transfer", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	unused, err := h.ledger.OnTransferReceived(ctx, callerOf(c), req.Contract, req.Sender, amount, req.Msg)
	if err != nil {
		fail(c, "ft_on_transfer", err)
		return
	}
	ok(c, "ft_on_transfer", gin.H{"unused": unused.Dec()})
}
