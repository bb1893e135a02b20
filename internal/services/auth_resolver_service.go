package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/nats-io/nats.go"
)

// AuthResolverQueue is the queue group of in-process auth resolvers.
const AuthResolverQueue = "tipledger-auth-resolver"

// ContactResolver answers the authorization contract's view calls.
type ContactResolver interface {
	ContactOwner(ctx context.Context, svc ledger.ServiceAccount) (string, error)
	Contacts(ctx context.Context, account string) ([]ledger.ServiceAccount, error)
}

// Reconciler applies settlement outcomes to the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, caller, id string, out ledger.Outcome) (ledger.Request, error)
}

// AuthResolverService performs auth_resolve and auth_contacts requests by
// calling the authorization contract and reconciling the answer.
type AuthResolverService struct {
	resolver ContactResolver
	ledger   Reconciler
	timeout  time.Duration
}

func NewAuthResolverService(resolver ContactResolver, l Reconciler, timeout time.Duration) *AuthResolverService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AuthResolverService{resolver: resolver, ledger: l, timeout: timeout}
}

// Resolve looks up the answer for one request. Lookup errors become failed
// outcomes.
func (s *AuthResolverService) Resolve(ctx context.Context, req ledger.Request) ledger.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch req.Kind {
	case ledger.KindAuthResolve:
		if req.Service == nil {
			return ledger.Outcome{Error: "request carries no service account"}
		}
		owner, err := s.resolver.ContactOwner(ctx, *req.Service)
		if err != nil {
			return ledger.Outcome{Error: err.Error()}
		}
		return ledger.Outcome{Success: true, Owner: owner}
	case ledger.KindAuthContacts:
		contacts, err := s.resolver.Contacts(ctx, req.Account)
		if err != nil {
			return ledger.Outcome{Error: err.Error()}
		}
		return ledger.Outcome{Success: true, Contacts: contacts}
	}
	return ledger.Outcome{Error: fmt.Sprintf("auth resolver cannot handle %s", req.Kind)}
}

// Handle resolves req and reports the outcome. It implements LocalRelayer.
func (s *AuthResolverService) Handle(ctx context.Context, req ledger.Request) {
	out := s.Resolve(ctx, req)
	settled, err := s.ledger.Reconcile(ctx, ledger.SelfPrincipal, req.ID, out)
	if err != nil {
		log.Printf("❌ [AuthResolver] Reconcile %s %s failed: %v", req.Kind, req.ID, err)
		return
	}
	log.Printf("✅ [AuthResolver] %s %s -> %s (owner=%q contacts=%d)",
		req.Kind, req.ID, settled.Status, out.Owner, len(out.Contacts))
}

// HandleMessage is the bus entry point.
func (s *AuthResolverService) HandleMessage(msg *dto.SettlementRequestMessage) {
	s.Handle(context.Background(), ledger.Request{
		ID:      msg.ID,
		Kind:    ledger.RequestKind(msg.Kind),
		Account: msg.Account,
		Service: msg.Service,
	})
}

// RequestSubscriber is the part of the NATS client the resolver consumes from.
type RequestSubscriber interface {
	SubscribeToRequests(kind ledger.RequestKind, queue string, handler func(*dto.SettlementRequestMessage)) (*nats.Subscription, error)
}

// Subscribe consumes both auth request kinds from the bus. The caller owns
// the returned subscriptions.
func (s *AuthResolverService) Subscribe(client RequestSubscriber) ([]*nats.Subscription, error) {
	var subs []*nats.Subscription
	for _, kind := range []ledger.RequestKind{ledger.KindAuthResolve, ledger.KindAuthContacts} {
		sub, err := client.SubscribeToRequests(kind, AuthResolverQueue, s.HandleMessage)
		if err != nil {
			for _, prev := range subs {
				_ = prev.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
