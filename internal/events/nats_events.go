package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tip-ledger/internal/clients"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"
	"tip-ledger/internal/services"

	"github.com/nats-io/nats.go"
)

// OutcomeConsumer turns relayer outcomes into ledger reconciliations.
type OutcomeConsumer struct {
	ledger  services.Reconciler
	timeout time.Duration
}

func NewOutcomeConsumer(l services.Reconciler) *OutcomeConsumer {
	return &OutcomeConsumer{ledger: l, timeout: 30 * time.Second}
}

// HandleOutcome reconciles one outcome and returns the resulting request status.
// Outcomes arriving on the bus are trusted as coming from this deployment's
// relayers and reconcile as the in-process principal.
func (c *OutcomeConsumer) HandleOutcome(msg *dto.SettlementOutcomeMessage) (string, error) {
	if msg.RequestID == "" {
		return "", fmt.Errorf("%w: outcome without request id", ledger.ErrInvalidArgument)
	}
	out, err := msg.ToOutcome()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := c.ledger.Reconcile(ctx, ledger.SelfPrincipal, msg.RequestID, out)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyReconciled) {
			log.Printf("ℹ️ [Outcome] %s already reconciled, ignoring duplicate", msg.RequestID)
		} else {
			log.Printf("❌ [Outcome] Reconcile %s failed: %v", msg.RequestID, err)
		}
		return "", err
	}
	metrics.SettlementOutcomes.WithLabelValues(string(req.Operation), string(req.Status)).Inc()
	log.Printf("✅ [Outcome] %s %s -> %s", req.Kind, req.ID, req.Status)
	return string(req.Status), nil
}

// Subscribe starts consuming <prefix>.outcomes.
func (c *OutcomeConsumer) Subscribe(client *clients.NATSClient) (*nats.Subscription, error) {
	return client.SubscribeToOutcomes(c.HandleOutcome)
}

// NATSEventSink publishes committed ledger events on <prefix>.events.<event>.
type NATSEventSink struct {
	client *clients.NATSClient
}

func NewNATSEventSink(client *clients.NATSClient) *NATSEventSink {
	return &NATSEventSink{client: client}
}

func (s *NATSEventSink) HandleEvent(_ context.Context, e ledger.Event) {
	if err := s.client.PublishEvent(e); err != nil {
		log.Printf("❌ [NATS] Publish %s event failed: %v", e.Event, err)
		metrics.NATSMessagesFailed.WithLabelValues("event", "publish").Inc()
	}
}
