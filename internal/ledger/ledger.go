package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SelfPrincipal is the caller identity of in-process settlement consumers.
// '@' never appears in a NEAR account id.
const SelfPrincipal = "@self"

// IsReservedPrincipal reports whether account names an internal principal
// and must never be accepted as a caller-supplied identity.
func IsReservedPrincipal(account string) bool {
	return strings.EqualFold(strings.TrimSpace(account), SelfPrincipal)
}

// Dispatcher hands settlement requests to whoever performs the external call.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// Option 账本可选配置
type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(next func() string) Option {
	return func(l *Ledger) { l.newID = next }
}

// Ledger is the serialized tipping state machine. Every public operation
// runs under one mutex, commits to the Store, and only then dispatches the
// settlement requests and events it produced.
type Ledger struct {
	mu         sync.Mutex
	st         *state
	store      Store
	dispatcher Dispatcher
	feed       event.Feed
	now        func() time.Time
	newID      func() string
}

// New loads the ledger from store. initial is written only when the store
// has no config yet.
func New(ctx context.Context, store Store, dispatcher Dispatcher, initial Config, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		st:         newState(),
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	l.st.replay(snap)

	if _, ok := l.st.currentConfig(); ok {
		return l, nil
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial config: %w", err)
	}
	err = l.exec(ctx, "init", func(tx *txn, _ Policy) error {
		l.st.config.set(tx, configKey, initial)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"owner":    initial.Owner,
		"operator": initial.Operator,
	}).Info("ledger initialized")
	return l, nil
}

// SubscribeEvents delivers every committed event to ch. The channel should be
// buffered and drained continuously.
func (l *Ledger) SubscribeEvents(ch chan<- Event) event.Subscription {
	return l.feed.Subscribe(ch)
}

// exec runs fn as one atomic operation. Any error undoes all of fn's writes.
func (l *Ledger) exec(ctx context.Context, name string, fn func(tx *txn, p Policy) error) error {
	l.mu.Lock()
	tx := newTxn()
	if err := fn(tx, l.st.policy()); err != nil {
		tx.rollback()
		l.mu.Unlock()
		return err
	}
	if cs := tx.changeset(); !cs.Empty() {
		if err := l.store.Apply(ctx, cs); err != nil {
			tx.rollback()
			l.mu.Unlock()
			return fmt.Errorf("persist %s: %w", name, err)
		}
	}
	reqs := make([]Request, 0, len(tx.requests))
	for _, id := range tx.requests {
		if r, ok := l.st.requests.get(id); ok {
			reqs = append(reqs, r)
		}
	}
	events := tx.events
	l.mu.Unlock()

	for _, r := range reqs {
		if err := l.dispatcher.Dispatch(ctx, r); err != nil {
			// The request stays pending and is picked up by redelivery.
			logrus.WithFields(logrus.Fields{
				"request_id": r.ID,
				"kind":       r.Kind,
				"operation":  r.Operation,
			}).WithError(err).Warn("dispatch settlement request failed")
		}
	}
	for _, e := range events {
		l.feed.Send(e)
	}
	return nil
}

// view runs fn with shared state locked and no writes allowed.
func (l *Ledger) view(fn func(p Policy)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.st.policy())
}

// issue records a pending request; it is dispatched after commit.
func (l *Ledger) issue(tx *txn, r Request) Request {
	now := l.now()
	r.ID = l.newID()
	r.Status = StatusPending
	r.CreatedAt = now
	r.UpdatedAt = now
	l.st.requests.set(tx, r.ID, r)
	tx.requests = append(tx.requests, r.ID)
	return r
}

// payout issues the outbound transfer of amount to account. Native payouts
// are terminal; fungible ones are compensated by op on failure.
func (l *Ledger) payout(tx *txn, account string, token TokenID, amount Amount, op Operation, svc *ServiceAccount) Request {
	if token.IsNative() {
		return l.issue(tx, Request{
			Kind: KindNativeTransfer, Operation: OpNativePayout,
			Account: account, Receiver: account, Token: token, Amount: amount, Service: svc,
		})
	}
	return l.issue(tx, Request{
		Kind: KindFTTransfer, Operation: op,
		Account: account, Receiver: account, Token: token, Amount: amount, Service: svc,
	})
}

func requireCaller(caller string) error {
	if caller == "" {
		return fmt.Errorf("%w: anonymous caller", ErrAccessDenied)
	}
	return nil
}

func (p Policy) requireRelayer(caller string) error {
	if caller == SelfPrincipal || (caller != "" && caller == p.cfg.Operator) {
		return nil
	}
	return fmt.Errorf("%w: %q may not report external events", ErrAccessDenied, caller)
}
