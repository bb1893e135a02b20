package dto

import (
	"fmt"
	"time"

	"tip-ledger/internal/ledger"
)

// ==================== Settlement bus messages ====================

// SettlementRequestMessage is published on <prefix>.requests.<kind>.
type SettlementRequestMessage struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Operation string                 `json:"operation"`
	Account   string                 `json:"account"`
	Receiver  string                 `json:"receiver,omitempty"`
	Token     string                 `json:"token"`
	Amount    string                 `json:"amount"`
	Fee       string                 `json:"fee,omitempty"`
	Origin    string                 `json:"origin,omitempty"`
	Service   *ledger.ServiceAccount `json:"service,omitempty"`
	ChatID    int64                  `json:"chat_id,omitempty"`
	Route     *ledger.SwapRoute      `json:"route,omitempty"`
	Status    string                 `json:"status"`
	Failure   string                 `json:"failure,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func RequestMessage(r ledger.Request) *SettlementRequestMessage {
	m := &SettlementRequestMessage{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Operation: string(r.Operation),
		Account:   r.Account,
		Receiver:  r.Receiver,
		Token:     r.Token.String(),
		Amount:    r.Amount.Dec(),
		Service:   r.Service,
		ChatID:    r.ChatID,
		Route:     r.Route,
		Status:    string(r.Status),
		Failure:   r.Failure,
		CreatedAt: r.CreatedAt,
	}
	if !r.Fee.IsZero() {
		m.Fee = r.Fee.Dec()
	}
	if r.Kind == ledger.KindWrap || r.Kind == ledger.KindSwap || r.Kind == ledger.KindUnwrap {
		m.Origin = r.Origin.String()
	}
	return m
}

// SettlementOutcomeMessage is what a relayer reports for a request, either on
// <prefix>.outcomes or through the HTTP callback.
type SettlementOutcomeMessage struct {
	RequestID string                  `json:"request_id"`
	Success   bool                    `json:"success"`
	Output    string                  `json:"output,omitempty"`
	Owner     string                  `json:"owner,omitempty"`
	Contacts  []ledger.ServiceAccount `json:"contacts,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

func (m SettlementOutcomeMessage) ToOutcome() (ledger.Outcome, error) {
	out := ledger.Outcome{Success: m.Success, Owner: m.Owner, Contacts: m.Contacts, Error: m.Error}
	if m.Output != "" {
		v, err := ledger.ParseAmount(m.Output)
		if err != nil {
			return ledger.Outcome{}, fmt.Errorf("outcome output: %w", err)
		}
		out.Output = v
	}
	for _, c := range m.Contacts {
		if err := c.Verify(); err != nil {
			return ledger.Outcome{}, fmt.Errorf("outcome contact: %w", err)
		}
	}
	return out, nil
}

// OutcomeAck is the reply to a request-reply outcome.
type OutcomeAck struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}
