package handlers

import (
	"net/http"
	"sort"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// 只读视图 (public GET)
// ============================================================================

// sortedTokens returns the whitelisted tokens in a stable order.
func (h *LedgerHandler) sortedTokens() []ledger.TokenID {
	wl := h.ledger.WhitelistedTokens()
	tokens := make([]ledger.TokenID, 0, len(wl))
	for t := range wl {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].String() < tokens[j].String() })
	return tokens
}

// perToken collects non-zero amounts keyed by token.
func (h *LedgerHandler) perToken(get func(ledger.TokenID) ledger.Amount) map[string]string {
	out := make(map[string]string)
	for _, t := range h.sortedTokens() {
		if v := get(t); !v.IsZero() {
			out[t.String()] = v.Dec()
		}
	}
	return out
}

// GetDepositsHandler GET /api/v1/accounts/:account/deposits
func (h *LedgerHandler) GetDepositsHandler(c *gin.Context) {
	account := c.Param("account")
	deposits := make([]gin.H, 0)
	for _, b := range h.ledger.Deposits(account) {
		deposits = append(deposits, gin.H{"token": b.Token.String(), "amount": b.Amount.Dec()})
	}
	linked := make([]string, 0)
	for _, svc := range h.ledger.ServiceAccountsOf(account) {
		linked = append(linked, svc.Key())
	}
	ok(c, "", gin.H{
		"account":          account,
		"deposits":         deposits,
		"service_accounts": linked,
	})
}

// GetUnclaimedTipsHandler GET /api/v1/service-accounts/:service/:id/unclaimed
func (h *LedgerHandler) GetUnclaimedTipsHandler(c *gin.Context) {
	svc, err := ledger.ParseServiceAccount(c.Param("service"), c.Param("id"))
	if err != nil {
		fail(c, "view", err)
		return
	}
	data := gin.H{
		"service_account": svc.Key(),
		"unclaimed": h.perToken(func(t ledger.TokenID) ledger.Amount {
			return h.ledger.UnclaimedTips(svc, t)
		}),
	}
	if owner, linked := h.ledger.OwnerOf(svc); linked {
		data["owner"] = owner
	}
	ok(c, "", data)
}

// GetTreasuryHandler GET /api/v1/treasury/:token
func (h *LedgerHandler) GetTreasuryHandler(c *gin.Context) {
	token, err := ledger.ParseTokenParam(c.Param("token"))
	if err != nil {
		fail(c, "view", err)
		return
	}
	treasury := h.ledger.Treasury(token)
	claimed := h.ledger.TreasuryClaimed(token)
	fees := h.ledger.ServiceFees(token)
	ok(c, "", gin.H{
		"token":        token.String(),
		"treasury":     treasury.Dec(),
		"claimed":      claimed.Dec(),
		"service_fees": fees.Dec(),
	})
}

// GetTreasuryShareHandler GET /api/v1/accounts/:account/treasury
func (h *LedgerHandler) GetTreasuryShareHandler(c *gin.Context) {
	account := c.Param("account")
	ok(c, "", gin.H{
		"account": account,
		"shares": h.perToken(func(t ledger.TokenID) ledger.Amount {
			return h.ledger.TreasuryShare(account, t)
		}),
	})
}

// GetRewardPointsHandler GET /api/v1/accounts/:account/rewards
func (h *LedgerHandler) GetRewardPointsHandler(c *gin.Context) {
	account := c.Param("account")
	ok(c, "", gin.H{
		"account": account,
		"points": h.perToken(func(t ledger.TokenID) ledger.Amount {
			return h.ledger.RewardPoints(account, t)
		}),
	})
}

// GetChatHandler GET /api/v1/chats/:chat
func (h *LedgerHandler) GetChatHandler(c *gin.Context) {
	chat, err := chatParam(c)
	if err != nil {
		fail(c, "view", err)
		return
	}
	settings, found := h.ledger.ChatSettings(chat)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "chat has no settings",
			"code":    "CHAT_NOT_FOUND",
		})
		return
	}
	ok(c, "", gin.H{
		"chat_id":  chat,
		"settings": dto.ChatSettingsFromLedger(settings),
		"points":   h.ledger.ChatPoints(chat),
	})
}

// GetRewardSupplyHandler GET /api/v1/rewards/supply
func (h *LedgerHandler) GetRewardSupplyHandler(c *gin.Context) {
	minted := h.ledger.TotalMinted()
	burned := h.ledger.TotalBurned()
	remaining := h.ledger.RemainingDistribution()
	cfg := h.ledger.Config()
	ok(c, "", gin.H{
		"reward_token":     cfg.RewardToken.String(),
		"total_minted":     minted.Dec(),
		"total_burned":     burned.Dec(),
		"remaining":        remaining.Dec(),
		"max_distribution": cfg.MaxDistribution.Dec(),
	})
}

// GetConfigHandler GET /api/v1/config
func (h *LedgerHandler) GetConfigHandler(c *gin.Context) {
	ok(c, "", gin.H{"config": dto.ConfigFromLedger(h.ledger.Config())})
}

// GetTokensHandler GET /api/v1/tokens
func (h *LedgerHandler) GetTokensHandler(c *gin.Context) {
	wl := h.ledger.WhitelistedTokens()
	tokens := make([]gin.H, 0, len(wl))
	for _, t := range h.sortedTokens() {
		tokens = append(tokens, gin.H{
			"token":  t.String(),
			"params": dto.TokenParamsFromLedger(wl[t]),
		})
	}
	ok(c, "", gin.H{"tokens": tokens})
}

// GetPendingRequestsHandler GET /api/v1/settlement/pending
func (h *LedgerHandler) GetPendingRequestsHandler(c *gin.Context) {
	pending := h.ledger.PendingRequests()
	out := make([]*dto.SettlementRequestMessage, 0, len(pending))
	for _, r := range pending {
		out = append(out, dto.RequestMessage(r))
	}
	ok(c, "", gin.H{"requests": out, "total": len(out)})
}

// GetRequestHandler GET /api/v1/settlement/:id
func (h *LedgerHandler) GetRequestHandler(c *gin.Context) {
	r, found := h.ledger.RequestByID(c.Param("id"))
	if !found {
		fail(c, "view", ledger.ErrUnknownRequest)
		return
	}
	ok(c, "", gin.H{"request": dto.RequestMessage(r)})
}
