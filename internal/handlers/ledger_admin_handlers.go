package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// Owner 管理操作 (/admin, owner 角色)
// ============================================================================

// UpdateConfigHandler PUT /api/v1/admin/config
func (h *LedgerHandler) UpdateConfigHandler(c *gin.Context) {
	var req dto.ConfigDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cfg, err := req.ToLedger()
	if err != nil {
		fail(c, "update_config", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.ledger.UpdateConfig(ctx, callerOf(c), cfg); err != nil {
		fail(c, "update_config", err)
		return
	}
	log.Printf("⚙️ [Admin] Config updated by %s", callerOf(c))
	ok(c, "update_config", gin.H{"config": dto.ConfigFromLedger(h.ledger.Config())})
}

// SetTipAvailableHandler POST /api/v1/admin/tip-available
func (h *LedgerHandler) SetTipAvailableHandler(c *gin.Context) {
	h.availability(c, "set_tip_available", h.ledger.SetTipAvailable)
}

// SetWithdrawAvailableHandler POST /api/v1/admin/withdraw-available
func (h *LedgerHandler) SetWithdrawAvailableHandler(c *gin.Context) {
	h.availability(c, "set_withdraw_available", h.ledger.SetWithdrawAvailable)
}

func (h *LedgerHandler) availability(c *gin.Context, op string, call func(ctx context.Context, caller string, available bool) error) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := call(ctx, callerOf(c), *req.Available); err != nil {
		fail(c, op, err)
		return
	}
	log.Printf("⚙️ [Admin] %s = %v", op, *req.Available)
	ok(c, op, gin.H{"available": *req.Available})
}

// WhitelistTokenHandler POST /api/v1/admin/tokens
// Adds a token or replaces its parameters.
func (h *LedgerHandler) WhitelistTokenHandler(c *gin.Context) {
	var req dto.WhitelistTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := ledger.ParseTokenParam(req.Token)
	if err != nil {
		fail(c, "whitelist_token", err)
		return
	}
	params, err := req.Params.ToLedger()
	if err != nil {
		fail(c, "whitelist_token", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.ledger.WhitelistToken(ctx, callerOf(c), token, params); err != nil {
		fail(c, "whitelist_token", err)
		return
	}
	log.Printf("✅ [Admin] Token %s whitelisted", token)
	ok(c, "whitelist_token", gin.H{
		"token":  token.String(),
		"params": dto.TokenParamsFromLedger(params),
	})
}

// RemoveTokenHandler DELETE /api/v1/admin/tokens/:token
func (h *LedgerHandler) RemoveTokenHandler(c *gin.Context) {
	token, err := ledger.ParseTokenParam(c.Param("token"))
	if err != nil {
		fail(c, "remove_whitelisted_token", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.ledger.RemoveWhitelistedToken(ctx, callerOf(c), token); err != nil {
		fail(c, "remove_whitelisted_token", err)
		return
	}
	log.Printf("🗑️ [Admin] Token %s removed from whitelist", token)
	ok(c, "remove_whitelisted_token", gin.H{"token": token.String()})
}

// SetChatSettingsHandler PUT /api/v1/admin/chats/:chat
func (h *LedgerHandler) SetChatSettingsHandler(c *gin.Context) {
	chat, err := chatParam(c)
	if err != nil {
		fail(c, "set_chat_settings", err)
		return
	}
	var req dto.ChatSettingsDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.ledger.SetChatSettings(ctx, callerOf(c), chat, req.ToLedger()); err != nil {
		fail(c, "set_chat_settings", err)
		return
	}
	ok(c, "set_chat_settings", gin.H{"chat_id": chat, "settings": req})
}

// DeleteChatSettingsHandler DELETE /api/v1/admin/chats/:chat
func (h *LedgerHandler) DeleteChatSettingsHandler(c *gin.Context) {
	chat, err := chatParam(c)
	if err != nil {
		fail(c, "delete_chat_settings", err)
		return
	}

	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.ledger.DeleteChatSettings(ctx, callerOf(c), chat); err != nil {
		fail(c, "delete_chat_settings", err)
		return
	}
	ok(c, "delete_chat_settings", gin.H{"chat_id": chat})
}

func chatParam(c *gin.Context) (int64, error) {
	chat, err := strconv.ParseInt(c.Param("chat"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chat id %q", ledger.ErrInvalidArgument, c.Param("chat"))
	}
	return chat, nil
}
