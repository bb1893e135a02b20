package handlers

import (
	"net/http"
	"strconv"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/models"
	"tip-ledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// StatisticsHandler 运维统计 (admin)，直接读数据库
type StatisticsHandler struct {
	repo repository.LedgerRepository
}

func NewStatisticsHandler(repo repository.LedgerRepository) *StatisticsHandler {
	return &StatisticsHandler{repo: repo}
}

// GetStatisticsHandler GET /api/v1/admin/statistics
// Settlement request counts by status.
func (h *StatisticsHandler) GetStatisticsHandler(c *gin.Context) {
	counts, err := h.repo.CountRequestsByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to count requests", "details": err.Error()})
		return
	}
	var total int64
	byStatus := make(map[string]int64, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"requests": byStatus,
		"total":    total,
		"pending":  counts[models.SettlementRequestStatusPending],
		"failed":   counts[models.SettlementRequestStatusFailed],
	})
}

// ListRequestsByStatusHandler GET /api/v1/admin/settlement?status=failed&limit=50
func (h *StatisticsHandler) ListRequestsByStatusHandler(c *gin.Context) {
	status := models.SettlementRequestStatus(c.DefaultQuery("status", string(models.SettlementRequestStatusFailed)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := h.repo.FindRequestsByStatus(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch requests", "details": err.Error()})
		return
	}
	out := make([]*dto.SettlementRequestMessage, 0, len(rows))
	for _, row := range rows {
		req, err := repository.RequestFromRow(row)
		if err != nil {
			continue
		}
		out = append(out, dto.RequestMessage(req))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": status, "requests": out, "total": len(out)})
}

// GetPrincipalBalancesHandler GET /api/v1/admin/balances/:principal
// Every stored balance row of a NEAR account or service key such as telegram:42.
func (h *StatisticsHandler) GetPrincipalBalancesHandler(c *gin.Context) {
	principal := c.Param("principal")
	rows, err := h.repo.FindBalancesByPrincipal(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch balances", "details": err.Error()})
		return
	}
	balances := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, gin.H{
			"kind":       row.Kind,
			"token":      row.Token,
			"amount":     row.Amount,
			"updated_at": row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "principal": principal, "balances": balances})
}
