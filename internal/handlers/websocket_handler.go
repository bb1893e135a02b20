package handlers

import (
	"net/http"
	"strings"

	"tip-ledger/internal/services"

	"github.com/gin-gonic/gin"
)

// WebSocketHandler serves the ledger event stream.
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
}

func NewWebSocketHandler(pushService *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{pushService: pushService}
}

// HandleEvents GET /ws/events?account=alice.near,telegram:42&events=tip,claim
// The initial filter comes from the query; clients may replace it with a
// {"action":"subscribe"} frame.
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	filter := services.SubscriptionFilter{
		Accounts: splitQuery(c.QueryArray("account")),
		Events:   splitQuery(c.QueryArray("events")),
	}
	h.pushService.HandleWebSocket(c.Writer, c.Request, filter)
}

// GetConnectionStatus GET /api/v1/ws/status
func (h *WebSocketHandler) GetConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"active_connections": h.pushService.GetActiveConnections(),
	})
}

// splitQuery flattens repeated and comma separated query values.
func splitQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
