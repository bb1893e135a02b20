package events

import (
	"context"
	"log"

	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"

	"github.com/ethereum/go-ethereum/event"
)

// Source is anything that feeds committed ledger events.
type Source interface {
	SubscribeEvents(ch chan<- ledger.Event) event.Subscription
}

// Sink receives every committed event.
type Sink interface {
	HandleEvent(ctx context.Context, e ledger.Event)
}

// Bridge fans ledger events out to sinks (bus, websocket, notifier).
type Bridge struct {
	source Source
	sinks  []Sink
	buffer int
}

func NewBridge(source Source, sinks ...Sink) *Bridge {
	return &Bridge{source: source, sinks: sinks, buffer: 256}
}

// AddSink registers a sink. Call before Run.
func (b *Bridge) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Run forwards events until ctx is done or the subscription fails.
func (b *Bridge) Run(ctx context.Context) error {
	ch := make(chan ledger.Event, b.buffer)
	sub := b.source.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	log.Printf("✅ [Events] Bridge running with %d sinks", len(b.sinks))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case e := <-ch:
			metrics.LedgerEvents.WithLabelValues(e.Event).Inc()
			for _, sink := range b.sinks {
				sink.HandleEvent(ctx, e)
			}
		}
	}
}
