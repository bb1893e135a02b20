package ledger

import (
	"context"
	"sync"
)

// TokenChange 白名单变更
type TokenChange struct {
	Token   TokenID
	Params  WhitelistedToken
	Removed bool
}

type ChatChange struct {
	Chat     int64
	Settings ChatSettings
	Removed  bool
}

type BalanceEntry struct {
	Key    BalanceKey
	Amount Amount
}

type LinkChange struct {
	Service ServiceAccount
	Account string
	Removed bool
}

type ChatPointsEntry struct {
	Chat   int64
	Points uint32
}

// Changeset is the set of rows written by one committed operation. A full
// snapshot returned by Store.Load uses the same shape.
type Changeset struct {
	Config      *Config
	Tokens      []TokenChange
	Chats       []ChatChange
	Balances    []BalanceEntry
	Links       []LinkChange
	ChatPoints  []ChatPointsEntry
	RewardFlags []ChatMember
	Requests    []Request
}

func (c *Changeset) Empty() bool {
	return c.Config == nil && len(c.Tokens) == 0 && len(c.Chats) == 0 && len(c.Balances) == 0 &&
		len(c.Links) == 0 && len(c.ChatPoints) == 0 && len(c.RewardFlags) == 0 && len(c.Requests) == 0
}

// Store persists committed changesets. Apply must be atomic: either every row
// of the changeset is written or none is.
type Store interface {
	Load(ctx context.Context) (*Changeset, error)
	Apply(ctx context.Context, cs *Changeset) error
}

// MemoryStore keeps the latest value of every row in memory.
type MemoryStore struct {
	mu   sync.Mutex
	snap *state
	// FailNext makes the next Apply return this error.
	FailNext error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: newState()}
}

func (m *MemoryStore) Load(_ context.Context) (*Changeset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := &Changeset{}
	if cfg, ok := m.snap.currentConfig(); ok {
		cs.Config = &cfg
	}
	for k, v := range m.snap.tokens.rows {
		cs.Tokens = append(cs.Tokens, TokenChange{Token: k, Params: v})
	}
	for k, v := range m.snap.chats.rows {
		cs.Chats = append(cs.Chats, ChatChange{Chat: k, Settings: v})
	}
	for k, v := range m.snap.balances.rows {
		cs.Balances = append(cs.Balances, BalanceEntry{Key: k, Amount: v})
	}
	for k, v := range m.snap.links.rows {
		cs.Links = append(cs.Links, LinkChange{Service: k, Account: v})
	}
	for k, v := range m.snap.chatPoints.rows {
		cs.ChatPoints = append(cs.ChatPoints, ChatPointsEntry{Chat: k, Points: v})
	}
	for k := range m.snap.rewardFlags.rows {
		cs.RewardFlags = append(cs.RewardFlags, k)
	}
	for _, r := range m.snap.requests.rows {
		cs.Requests = append(cs.Requests, r)
	}
	return cs, nil
}

func (m *MemoryStore) Apply(_ context.Context, cs *Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return err
	}
	m.snap.replay(cs)
	for _, t := range cs.Tokens {
		if t.Removed {
			delete(m.snap.tokens.rows, t.Token)
		}
	}
	for _, c := range cs.Chats {
		if c.Removed {
			delete(m.snap.chats.rows, c.Chat)
		}
	}
	for _, l := range cs.Links {
		if l.Removed {
			delete(m.snap.links.rows, l.Service)
		}
	}
	return nil
}
