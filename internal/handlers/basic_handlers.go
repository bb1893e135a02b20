package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BusStatus reports whether the settlement bus is connected.
type BusStatus interface {
	IsConnected() bool
}

// HealthHandler GET /health
type HealthHandler struct {
	db  *gorm.DB
	bus BusStatus
}

// NewHealthHandler bus may be nil when NATS is disabled.
func NewHealthHandler(db *gorm.DB, bus BusStatus) *HealthHandler {
	return &HealthHandler{db: db, bus: bus}
}

func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":  "ok",
		"service": "tip-ledger",
		"api":     "healthy",
	}

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			body["database"] = "unavailable"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}

	switch {
	case h.bus == nil:
		body["nats"] = "disabled"
	case h.bus.IsConnected():
		body["nats"] = "connected"
	default:
		// 结算请求会由重投服务补发
		body["nats"] = "disconnected"
		body["status"] = "degraded"
	}

	c.JSON(status, body)
}
