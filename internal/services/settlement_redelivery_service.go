package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tip-ledger/internal/config"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"
	"tip-ledger/internal/models"
	"tip-ledger/internal/repository"
)

// PendingSource lists requests still waiting for an outcome.
type PendingSource interface {
	PendingRequests() []ledger.Request
}

// RequestDeliverer sends a request once.
type RequestDeliverer interface {
	Deliver(ctx context.Context, req ledger.Request) error
}

// SettlementRedeliveryService republishes requests that stayed pending past
// the stale age. It never produces outcomes; relayers deduplicate by id.
type SettlementRedeliveryService struct {
	source     PendingSource
	deliverer  RequestDeliverer
	deliveries repository.SettlementDeliveryRepository

	staleAfter time.Duration
	retryBase  time.Duration
	retryMax   time.Duration
	batchSize  int
	now        func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSettlementRedeliveryService(source PendingSource, deliverer RequestDeliverer, deliveries repository.SettlementDeliveryRepository, cfg config.SettlementConfig) *SettlementRedeliveryService {
	base, maxDelay := cfg.Backoff()
	return &SettlementRedeliveryService{
		source:     source,
		deliverer:  deliverer,
		deliveries: deliveries,
		staleAfter: cfg.StaleAfterDuration(),
		retryBase:  base,
		retryMax:   maxDelay,
		batchSize:  cfg.BatchSize,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start 启动重投递循环
func (s *SettlementRedeliveryService) Start(interval time.Duration) {
	log.Printf("🚀 [Redelivery] Starting settlement redelivery, interval: %v, stale after: %v", interval, s.staleAfter)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if _, err := s.ProcessPending(context.Background()); err != nil {
					log.Printf("❌ [Redelivery] Pass failed: %v", err)
				}
			}
		}
	}()
}

func (s *SettlementRedeliveryService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	log.Println("✅ [Redelivery] Stopped")
}

// ProcessPending runs one redelivery pass and returns how many requests were
// published again.
func (s *SettlementRedeliveryService) ProcessPending(ctx context.Context) (int, error) {
	now := s.now()
	pending := s.source.PendingRequests()
	metrics.SettlementPending.Set(float64(len(pending)))

	stillPending := make(map[string]bool, len(pending))
	redelivered := 0
	for _, req := range pending {
		stillPending[req.ID] = true
		if s.batchSize > 0 && redelivered >= s.batchSize {
			continue
		}

		// 首次投递失败的请求已有记录，按退避时间重投；其余等到过期才重投
		delivery, err := s.deliveries.Get(ctx, req.ID)
		if err != nil {
			return redelivered, fmt.Errorf("load delivery state %s: %w", req.ID, err)
		}
		if delivery == nil {
			if now.Sub(req.CreatedAt) < s.staleAfter {
				continue
			}
			delivery = &models.SettlementDelivery{RequestID: req.ID, NextAttemptAt: req.CreatedAt.Add(s.staleAfter)}
		}
		if !delivery.Due(now) {
			continue
		}

		deliverErr := s.deliverer.Deliver(ctx, req)
		delivery.RecordAttempt(now, s.retryBase, s.retryMax, deliverErr)
		if err := s.deliveries.Save(ctx, delivery); err != nil {
			return redelivered, fmt.Errorf("save delivery state %s: %w", req.ID, err)
		}
		metrics.SettlementRedeliveries.Inc()
		redelivered++

		if deliverErr != nil {
			log.Printf("⚠️ [Redelivery] %s %s attempt %d failed, next at %s: %v",
				req.Kind, req.ID, delivery.Attempts, delivery.NextAttemptAt.Format(time.RFC3339), deliverErr)
		} else {
			log.Printf("🔄 [Redelivery] %s %s republished (attempt %d)", req.Kind, req.ID, delivery.Attempts)
		}
	}

	if err := s.forgetReconciled(ctx, now, stillPending); err != nil {
		return redelivered, err
	}
	return redelivered, nil
}

// forgetReconciled drops delivery rows of requests that got their outcome.
func (s *SettlementRedeliveryService) forgetReconciled(ctx context.Context, now time.Time, pending map[string]bool) error {
	due, err := s.deliveries.FindDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("find due deliveries: %w", err)
	}
	var done []string
	for _, d := range due {
		if !pending[d.RequestID] {
			done = append(done, d.RequestID)
		}
	}
	if len(done) == 0 {
		return nil
	}
	return s.deliveries.Delete(ctx, done...)
}
