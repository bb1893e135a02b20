package services

import (
	"context"
	"log"
	"sync"
	"time"

	"tip-ledger/internal/metrics"
	"tip-ledger/internal/models"
	"tip-ledger/internal/repository"

	"gorm.io/gorm"
)

// MonitoringService 监控服务，负责定期更新 Prometheus metrics
type MonitoringService struct {
	db       *gorm.DB
	requests repository.LedgerRepository
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMonitoringService 创建监控服务
func NewMonitoringService(db *gorm.DB, requests repository.LedgerRepository) *MonitoringService {
	return &MonitoringService{
		db:       db,
		requests: requests,
		interval: 10 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动监控服务
func (m *MonitoringService) Start() {
	log.Println("🚀 Starting monitoring service...")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.updateDatabaseMetrics()
				m.updateSettlementMetrics()
			}
		}
	}()

	log.Println("✅ Monitoring service started")
}

// Stop 停止监控服务
func (m *MonitoringService) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	log.Println("✅ Monitoring service stopped")
}

// updateDatabaseMetrics 更新数据库指标
func (m *MonitoringService) updateDatabaseMetrics() {
	sqlDB, err := m.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}

	stats := sqlDB.Stats()
	metrics.DBConnectionOpen.Set(float64(stats.OpenConnections))

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}
}

func (m *MonitoringService) updateSettlementMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := m.requests.CountRequestsByStatus(ctx)
	if err != nil {
		log.Printf("⚠️ [Monitoring] Count settlement requests failed: %v", err)
		return
	}
	metrics.SettlementPending.Set(float64(counts[models.SettlementRequestStatusPending]))
}
