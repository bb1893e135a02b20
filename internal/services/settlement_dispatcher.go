package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tip-ledger/internal/config"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"
	"tip-ledger/internal/models"
	"tip-ledger/internal/repository"
)

var ErrBusUnavailable = errors.New("settlement bus is not connected")

// RequestPublisher hands settlement requests to relayers.
type RequestPublisher interface {
	PublishRequest(req *dto.SettlementRequestMessage) error
}

// LocalRelayer performs a request kind inside this process.
type LocalRelayer interface {
	Handle(ctx context.Context, req ledger.Request)
}

// SettlementDispatcher implements ledger.Dispatcher. Requests go to a local
// relayer when one is registered for their kind, otherwise to the bus.
type SettlementDispatcher struct {
	publisher  RequestPublisher
	deliveries repository.SettlementDeliveryRepository
	retryBase  time.Duration
	retryMax   time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	local map[ledger.RequestKind]LocalRelayer
}

// NewSettlementDispatcher publisher may be nil when no bus is configured.
func NewSettlementDispatcher(publisher RequestPublisher, deliveries repository.SettlementDeliveryRepository, cfg config.SettlementConfig) *SettlementDispatcher {
	base, maxDelay := cfg.Backoff()
	return &SettlementDispatcher{
		publisher:  publisher,
		deliveries: deliveries,
		retryBase:  base,
		retryMax:   maxDelay,
		now:        time.Now,
		local:      make(map[ledger.RequestKind]LocalRelayer),
	}
}

// RegisterLocal routes every request of kind to relayer.
func (d *SettlementDispatcher) RegisterLocal(kind ledger.RequestKind, relayer LocalRelayer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.local[kind] = relayer
}

// Dispatch delivers a freshly committed request. A failed delivery is
// scheduled for redelivery; the request itself stays pending.
func (d *SettlementDispatcher) Dispatch(ctx context.Context, req ledger.Request) error {
	err := d.Deliver(ctx, req)
	if err != nil && d.deliveries != nil {
		delivery := &models.SettlementDelivery{RequestID: req.ID}
		delivery.RecordAttempt(d.now(), d.retryBase, d.retryMax, err)
		if saveErr := d.deliveries.Save(ctx, delivery); saveErr != nil {
			log.Printf("❌ [Settlement] Save delivery state for %s failed: %v", req.ID, saveErr)
		}
	}
	return err
}

// Deliver sends req once without touching delivery bookkeeping.
func (d *SettlementDispatcher) Deliver(ctx context.Context, req ledger.Request) error {
	d.mu.RLock()
	relayer, ok := d.local[req.Kind]
	d.mu.RUnlock()

	if ok {
		// 本地处理不阻塞调用方；结果通过 Reconcile 回到账本
		go relayer.Handle(context.Background(), req)
		metrics.SettlementDispatched.WithLabelValues(string(req.Kind), "local").Inc()
		return nil
	}

	var err error
	if d.publisher == nil {
		err = ErrBusUnavailable
	} else {
		err = d.publisher.PublishRequest(dto.RequestMessage(req))
	}
	metrics.SettlementDispatched.WithLabelValues(string(req.Kind), metrics.Result(err)).Inc()
	if err != nil {
		log.Printf("❌ [Settlement] Publish %s %s failed: %v", req.Kind, req.ID, err)
		return err
	}
	log.Printf("📤 [Settlement] Published %s request %s (account=%s token=%s amount=%s)",
		req.Kind, req.ID, req.Account, req.Token, req.Amount.Dec())
	return nil
}
