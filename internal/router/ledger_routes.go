package router

import (
	"tip-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupLedgerRoutes mounts /api/v1.
func SetupLedgerRoutes(r *gin.Engine, h Handlers, localhostOnly *middleware.LocalhostOnly) {
	api := r.Group("/api/v1")
	l := h.Ledger

	// ============ Auth ============
	api.POST("/auth/token", h.Auth.AuthenticateHandler)
	api.POST("/admin/login", localhostOnly.Restrict(), h.AdminAuth.AdminLoginHandler)
	api.GET("/admin/totp-secret", localhostOnly.Restrict(), h.AdminAuth.GenerateTOTPSecretHandler)

	// ============ Views (public) ============
	api.GET("/config", l.GetConfigHandler)
	api.GET("/tokens", l.GetTokensHandler)
	api.GET("/accounts/:account/deposits", l.GetDepositsHandler)
	api.GET("/accounts/:account/treasury", l.GetTreasuryShareHandler)
	api.GET("/accounts/:account/rewards", l.GetRewardPointsHandler)
	api.GET("/service-accounts/:service/:id/unclaimed", l.GetUnclaimedTipsHandler)
	api.GET("/treasury/:token", l.GetTreasuryHandler)
	api.GET("/chats/:chat", l.GetChatHandler)
	api.GET("/rewards/supply", l.GetRewardSupplyHandler)
	api.GET("/settlement/pending", l.GetPendingRequestsHandler)
	api.GET("/settlement/:id", l.GetRequestHandler)
	api.GET("/ws/status", h.WebSocket.GetConnectionStatus)

	// ============ Authenticated operations ============
	// principal checks (owner/operator/relayer) happen inside the ledger
	authed := api.Group("", h.AuthMW.RequireAuth())
	{
		authed.POST("/deposits", l.DepositHandler)
		authed.POST("/tips", l.TipHandler)
		authed.POST("/tips/auth", l.TipWithAuthHandler)
		authed.POST("/withdrawals", l.WithdrawHandler)
		authed.POST("/withdrawals/auth", l.WithdrawWithAuthHandler)
		authed.POST("/contacts/claim", l.ClaimContactTipsHandler)
		authed.POST("/treasury/claim", l.ClaimTreasuryHandler)
		authed.POST("/treasury/unwrap", l.UnwrapTreasuryHandler)
		authed.POST("/rewards/claim", l.ClaimRewardTokensHandler)
		authed.POST("/rewards/claim-chat", l.ClaimChatRewardsHandler)
		authed.POST("/rewards/redeem", l.RedeemHandler)

		authed.POST("/service-accounts/link", l.LinkServiceAccountHandler)
		authed.DELETE("/service-accounts/link", l.UnlinkServiceAccountHandler)
		authed.POST("/service-accounts/transfer", l.TransferUnclaimedHandler)
		authed.POST("/service-accounts/withdraw", l.WithdrawFromServiceAccountHandler)
		authed.POST("/ft/on-transfer", l.OnTransferHandler)

		authed.POST("/settlement/:id/outcome", l.SettlementOutcomeHandler)
	}

	// ============ Owner ============
	admin := api.Group("/admin", localhostOnly.Restrict(), h.AuthMW.RequireAuth(), h.AuthMW.RequireOwner())
	{
		admin.PUT("/config", l.UpdateConfigHandler)
		admin.POST("/tip-available", l.SetTipAvailableHandler)
		admin.POST("/withdraw-available", l.SetWithdrawAvailableHandler)
		admin.POST("/tokens", l.WhitelistTokenHandler)
		admin.DELETE("/tokens/:token", l.RemoveTokenHandler)
		admin.PUT("/chats/:chat", l.SetChatSettingsHandler)
		admin.DELETE("/chats/:chat", l.DeleteChatSettingsHandler)

		admin.GET("/statistics", h.Statistics.GetStatisticsHandler)
		admin.GET("/settlement", h.Statistics.ListRequestsByStatusHandler)
		admin.GET("/balances/:principal", h.Statistics.GetPrincipalBalancesHandler)
		admin.POST("/settlement/redeliver", h.Retry.RedeliverPendingHandler)
		admin.POST("/settlement/:id/retry", h.Retry.RetryRequestHandler)
	}
}
