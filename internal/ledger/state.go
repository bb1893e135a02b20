package ledger

// table is a map whose writes are journaled in a txn so an aborted
// operation can be undone and a committed one turned into a Changeset.
type table[K comparable, V any] struct {
	rows  map[K]V
	flush func(cs *Changeset, k K, v V, present bool)
}

func newTable[K comparable, V any](flush func(cs *Changeset, k K, v V, present bool)) *table[K, V] {
	return &table[K, V]{rows: make(map[K]V), flush: flush}
}

type touchKey struct {
	table any
	key   any
}

func (t *table[K, V]) get(k K) (V, bool) {
	v, ok := t.rows[k]
	return v, ok
}

func (t *table[K, V]) touch(tx *txn, k K) {
	tk := touchKey{table: t, key: k}
	if _, seen := tx.touched[tk]; seen {
		return
	}
	tx.touched[tk] = struct{}{}
	tx.order = append(tx.order, tk)
	old, present := t.rows[k]
	tx.undo = append(tx.undo, func() {
		if present {
			t.rows[k] = old
		} else {
			delete(t.rows, k)
		}
	})
	if t.flush != nil {
		tx.flush = append(tx.flush, func(cs *Changeset) {
			v, ok := t.rows[k]
			t.flush(cs, k, v, ok)
		})
	}
}

func (t *table[K, V]) set(tx *txn, k K, v V) {
	t.touch(tx, k)
	t.rows[k] = v
}

func (t *table[K, V]) del(tx *txn, k K) {
	t.touch(tx, k)
	delete(t.rows, k)
}

// load writes without journaling; used when replaying a stored snapshot.
func (t *table[K, V]) load(k K, v V) {
	t.rows[k] = v
}

// txn 单次操作的写日志
type txn struct {
	undo     []func()
	touched  map[touchKey]struct{}
	order    []touchKey
	flush    []func(cs *Changeset)
	events   []Event
	requests []string
}

func newTxn() *txn {
	return &txn{touched: make(map[touchKey]struct{})}
}

type savepoint struct {
	undo, touched, flush, events, requests int
}

func (tx *txn) savepoint() savepoint {
	return savepoint{
		undo:     len(tx.undo),
		touched:  len(tx.order),
		flush:    len(tx.flush),
		events:   len(tx.events),
		requests: len(tx.requests),
	}
}

// rollbackTo undoes every write made after sp. Keys first touched after sp
// are forgotten, so a later write journals them again.
func (tx *txn) rollbackTo(sp savepoint) {
	for i := len(tx.undo) - 1; i >= sp.undo; i-- {
		tx.undo[i]()
	}
	for _, tk := range tx.order[sp.touched:] {
		delete(tx.touched, tk)
	}
	tx.undo = tx.undo[:sp.undo]
	tx.order = tx.order[:sp.touched]
	tx.flush = tx.flush[:sp.flush]
	tx.events = tx.events[:sp.events]
	tx.requests = tx.requests[:sp.requests]
}

func (tx *txn) rollback() {
	tx.rollbackTo(savepoint{})
}

func (tx *txn) changeset() *Changeset {
	cs := &Changeset{}
	for _, f := range tx.flush {
		f(cs)
	}
	return cs
}

func (tx *txn) emit(e Event) {
	tx.events = append(tx.events, e)
}

type linkIndexKey struct {
	Account string
	Service Service
}

// ChatMember keys the once-per-(sender, chat) reward point flag.
type ChatMember struct {
	Account string
	Chat    int64
}

const configKey = "config"

// state holds every ledger entity.
type state struct {
	config      *table[string, Config]
	tokens      *table[TokenID, WhitelistedToken]
	chats       *table[int64, ChatSettings]
	balances    *table[BalanceKey, Amount]
	links       *table[ServiceAccount, string]
	linkIndex   *table[linkIndexKey, ServiceAccount]
	chatPoints  *table[int64, uint32]
	rewardFlags *table[ChatMember, struct{}]
	requests    *table[string, Request]
}

func newState() *state {
	return &state{
		config: newTable(func(cs *Changeset, _ string, v Config, present bool) {
			if present {
				c := v
				cs.Config = &c
			}
		}),
		tokens: newTable(func(cs *Changeset, k TokenID, v WhitelistedToken, present bool) {
			cs.Tokens = append(cs.Tokens, TokenChange{Token: k, Params: v, Removed: !present})
		}),
		chats: newTable(func(cs *Changeset, k int64, v ChatSettings, present bool) {
			cs.Chats = append(cs.Chats, ChatChange{Chat: k, Settings: v, Removed: !present})
		}),
		balances: newTable(func(cs *Changeset, k BalanceKey, v Amount, _ bool) {
			cs.Balances = append(cs.Balances, BalanceEntry{Key: k, Amount: v})
		}),
		links: newTable(func(cs *Changeset, k ServiceAccount, v string, present bool) {
			cs.Links = append(cs.Links, LinkChange{Service: k, Account: v, Removed: !present})
		}),
		linkIndex: newTable[linkIndexKey, ServiceAccount](nil),
		chatPoints: newTable(func(cs *Changeset, k int64, v uint32, _ bool) {
			cs.ChatPoints = append(cs.ChatPoints, ChatPointsEntry{Chat: k, Points: v})
		}),
		rewardFlags: newTable(func(cs *Changeset, k ChatMember, _ struct{}, present bool) {
			if present {
				cs.RewardFlags = append(cs.RewardFlags, k)
			}
		}),
		requests: newTable(func(cs *Changeset, _ string, v Request, present bool) {
			if present {
				cs.Requests = append(cs.Requests, v)
			}
		}),
	}
}

// currentConfig returns the stored config; ok is false before initialization.
func (s *state) currentConfig() (Config, bool) {
	return s.config.get(configKey)
}

func (s *state) policy() Policy {
	cfg, _ := s.currentConfig()
	return Policy{cfg: cfg, tokens: s.tokens.rows, chats: s.chats.rows}
}

// replay loads a stored snapshot.
func (s *state) replay(cs *Changeset) {
	if cs.Config != nil {
		s.config.load(configKey, *cs.Config)
	}
	for _, t := range cs.Tokens {
		if !t.Removed {
			s.tokens.load(t.Token, t.Params)
		}
	}
	for _, c := range cs.Chats {
		if !c.Removed {
			s.chats.load(c.Chat, c.Settings)
		}
	}
	for _, b := range cs.Balances {
		s.balances.load(b.Key, b.Amount)
	}
	for _, l := range cs.Links {
		if l.Removed {
			continue
		}
		s.links.load(l.Service, l.Account)
		s.linkIndex.load(linkIndexKey{Account: l.Account, Service: l.Service.Service}, l.Service)
	}
	for _, p := range cs.ChatPoints {
		s.chatPoints.load(p.Chat, p.Points)
	}
	for _, f := range cs.RewardFlags {
		s.rewardFlags.load(f, struct{}{})
	}
	for _, r := range cs.Requests {
		s.requests.load(r.ID, r)
	}
}
