package handlers

import (
	"context"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// 用户操作 (JWT)
// ============================================================================

// DepositHandler POST /api/v1/deposits
// Reported by the relayer once value has arrived.
func (h *LedgerHandler) DepositHandler(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := ledger.ParseTokenParam(req.Token)
	if err != nil {
		fail(c, "deposit", err)
		return
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		fail(c, "deposit", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	notice := ledger.DepositNotice{Account: req.Account, Token: token, Amount: amount}
	if err := h.ledger.Deposit(ctx, callerOf(c), notice); err != nil {
		fail(c, "deposit", err)
		return
	}
	balance := h.ledger.DepositOf(req.Account, token)
	ok(c, "deposit", gin.H{
		"account": req.Account,
		"token":   token.String(),
		"balance": balance.Dec(),
	})
}

// TipHandler POST /api/v1/tips
func (h *LedgerHandler) TipHandler(c *gin.Context) {
	var req dto.TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tip, err := req.ToLedger(callerOf(c))
	if err != nil {
		fail(c, "tip", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	res, err := h.ledger.Tip(ctx, tip)
	if err != nil {
		fail(c, "tip", err)
		return
	}
	data := gin.H{
		"fee": res.Fee.Dec(),
		"net": res.Net.Dec(),
	}
	if res.CreditedAccount != "" {
		data["credited_account"] = res.CreditedAccount
	}
	if res.Unclaimed != nil {
		data["unclaimed"] = res.Unclaimed.Key()
	}
	ok(c, "tip", data)
}

// TipWithAuthHandler POST /api/v1/tips/auth
// The receiver is a service account whose owner is looked up first.
func (h *LedgerHandler) TipWithAuthHandler(c *gin.Context) {
	var req dto.TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tip, err := req.ToLedger(callerOf(c))
	if err != nil {
		fail(c, "tip_with_auth", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := h.ledger.TipWithAuth(ctx, tip)
	if err != nil {
		fail(c, "tip_with_auth", err)
		return
	}
	accepted(c, "tip_with_auth", r)
}

// WithdrawHandler POST /api/v1/withdrawals
func (h *LedgerHandler) WithdrawHandler(c *gin.Context) {
	var req dto.TokenAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, amount, err := req.Parse()
	if err != nil {
		fail(c, "withdraw", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	res, err := h.ledger.Withdraw(ctx, callerOf(c), token, amount)
	if err != nil {
		fail(c, "withdraw", err)
		return
	}
	accepted(c, "withdraw", res.Request)
}

// WithdrawWithAuthHandler POST /api/v1/withdrawals/auth
func (h *LedgerHandler) WithdrawWithAuthHandler(c *gin.Context) {
	var req dto.ServiceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	svc, err := req.Service.ToLedger()
	if err != nil {
		fail(c, "withdraw_with_auth", err)
		return
	}
	token, err := ledger.ParseTokenParam(req.Token)
	if err != nil {
		fail(c, "withdraw_with_auth", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := h.ledger.WithdrawWithAuth(ctx, callerOf(c), svc, token)
	if err != nil {
		fail(c, "withdraw_with_auth", err)
		return
	}
	accepted(c, "withdraw_with_auth", r)
}

// ClaimContactTipsHandler POST /api/v1/contacts/claim
func (h *LedgerHandler) ClaimContactTipsHandler(c *gin.Context) {
	h.tokenRequest(c, "claim_contact_tips", h.ledger.ClaimContactTips)
}

// ClaimRewardTokensHandler POST /api/v1/rewards/claim
func (h *LedgerHandler) ClaimRewardTokensHandler(c *gin.Context) {
	h.tokenRequest(c, "claim_reward_tokens", h.ledger.ClaimRewardTokens)
}

func (h *LedgerHandler) tokenRequest(c *gin.Context, op string, call func(ctx context.Context, caller string, token ledger.TokenID) (ledger.Request, error)) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := ledger.ParseTokenParam(req.Token)
	if err != nil {
		fail(c, op, err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := call(ctx, callerOf(c), token)
	if err != nil {
		fail(c, op, err)
		return
	}
	accepted(c, op, r)
}

// ClaimTreasuryHandler POST /api/v1/treasury/claim
func (h *LedgerHandler) ClaimTreasuryHandler(c *gin.Context) {
	var req dto.TokenAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, amount, err := req.Parse()
	if err != nil {
		fail(c, "claim_tiptoken", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := h.ledger.ClaimTiptoken(ctx, callerOf(c), token, amount)
	if err != nil {
		fail(c, "claim_tiptoken", err)
		return
	}
	accepted(c, "claim_tiptoken", r)
}

// UnwrapTreasuryHandler POST /api/v1/treasury/unwrap
func (h *LedgerHandler) UnwrapTreasuryHandler(c *gin.Context) {
	var req dto.UnwrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := dto.OptionalAmount(req.Amount)
	if err != nil {
		fail(c, "unwrap_treasury", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := h.ledger.UnwrapTreasury(ctx, callerOf(c), amount)
	if err != nil {
		fail(c, "unwrap_treasury", err)
		return
	}
	accepted(c, "unwrap_treasury", r)
}

// ClaimChatRewardsHandler POST /api/v1/rewards/claim-chat
func (h *LedgerHandler) ClaimChatRewardsHandler(c *gin.Context) {
	var req dto.ChatRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := ledger.ParseTokenParam(req.Token)
	if err != nil {
		fail(c, "claim_reward_tokens_for_chat", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	r, err := h.ledger.ClaimRewardTokensForChat(ctx, callerOf(c), req.ChatID, token)
	if err != nil {
		fail(c, "claim_reward_tokens_for_chat", err)
		return
	}
	accepted(c, "claim_reward_tokens_for_chat", r)
}

// RedeemHandler POST /api/v1/rewards/redeem
func (h *LedgerHandler) RedeemHandler(c *gin.Context) {
	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tokens := make([]ledger.TokenID, 0, len(req.Tokens))
	for _, raw := range req.Tokens {
		token, err := ledger.ParseTokenParam(raw)
		if err != nil {
			fail(c, "redeem", err)
			return
		}
		tokens = append(tokens, token)
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	shares, err := h.ledger.Redeem(ctx, callerOf(c), tokens)
	if err != nil {
		fail(c, "redeem", err)
		return
	}
	out := make(map[string]string, len(shares))
	for token, v := range shares {
		out[token.String()] = v.Dec()
	}
	ok(c, "redeem", gin.H{"shares": out})
}
