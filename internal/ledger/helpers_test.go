package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	owner    = "owner.near"
	operator = "operator.near"
	alice    = "alice.near"
	bob      = "bob.near"
	carol    = "carol.near"
	chatAdm  = "chat-admin.near"
	ammPool  = "amm.near"
	testChat = int64(-100123)
)

var (
	usdc        = FungibleToken("usdc.near")
	wrapped     = FungibleToken("wrap.near")
	rewardToken = FungibleToken("tiptoken.near")
	native      = NativeToken()
)

func amt(v uint64) Amount {
	return NewAmount(v)
}

func ptr(a Amount) *Amount {
	return &a
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []Request
	fail error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, r Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, r)
	return d.fail
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

func (d *recordingDispatcher) last(t *testing.T) Request {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.reqs, "no request dispatched")
	return d.reqs[len(d.reqs)-1]
}

func testConfig() Config {
	return Config{
		Owner:               owner,
		Operator:            operator,
		TreasuryFee:         FeeFraction{Numerator: 1, Denominator: 10},
		ServiceFee:          FeeFraction{Numerator: 1, Denominator: 100},
		TipAvailable:        true,
		WithdrawAvailable:   true,
		RewardToken:         rewardToken,
		WrappedNative:       wrapped,
		ChatRewardThreshold: DefaultChatRewardThreshold,
		MaxDistribution:     DefaultMaxDistribution,
	}
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	l     *Ledger
	store *MemoryStore
	disp  *recordingDispatcher
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), store: NewMemoryStore(), disp: &recordingDispatcher{}}
	var err error
	f.l, err = New(f.ctx, f.store, f.disp, testConfig(), WithIDGenerator(f.nextID))
	require.NoError(t, err)

	route := func(pool uint64) *SwapRoute { return &SwapRoute{Contract: ammPool, PoolIDs: []uint64{pool}} }
	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, native, WhitelistedToken{
		TipsAvailable: true, MinDeposit: amt(1), WithdrawCommission: amt(2),
	}))
	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, usdc, WhitelistedToken{
		TipsAvailable: true, MinDeposit: amt(1), WithdrawCommission: amt(5), Swap: route(7),
	}))
	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, wrapped, WhitelistedToken{
		TipsAvailable: true, MinDeposit: amt(1), Swap: route(3),
	}))
	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, rewardToken, WhitelistedToken{
		TipsAvailable: true, MinDeposit: amt(1),
	}))
	return f
}

func (f *fixture) nextID() string {
	f.seq++
	return fmt.Sprintf("req-%03d", f.seq)
}

func (f *fixture) deposit(account string, token TokenID, v uint64) {
	f.t.Helper()
	require.NoError(f.t, f.l.Deposit(f.ctx, operator, DepositNotice{Account: account, Token: token, Amount: amt(v)}))
}

func (f *fixture) tip(sender, receiver string, token TokenID, v uint64) TipResult {
	f.t.Helper()
	res, err := f.l.Tip(f.ctx, TipRequest{Sender: sender, ReceiverAccount: receiver, Token: token, Amount: amt(v)})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) reconcile(id string, out Outcome) Request {
	f.t.Helper()
	r, err := f.l.Reconcile(f.ctx, SelfPrincipal, id, out)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) setChat(settings ChatSettings) {
	f.t.Helper()
	require.NoError(f.t, f.l.SetChatSettings(f.ctx, owner, testChat, settings))
}

// requireAmount compares amounts by decimal value for readable failures.
func requireAmount(t *testing.T, want uint64, got Amount, msgAndArgs ...interface{}) {
	t.Helper()
	w := amt(want)
	require.Equal(t, w.Dec(), got.Dec(), msgAndArgs...)
}

// conserved sums every value-bearing balance of token.
func (f *fixture) conserved(token TokenID) Amount {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	var sum Amount
	for k, v := range f.l.st.balances.rows {
		if k.Token != token {
			continue
		}
		switch k.Kind {
		case BalanceDeposit, BalanceUnclaimedTip, BalanceTreasury, BalanceServiceFees:
			sum.Add(&sum, &v)
		}
	}
	return sum
}

// balances copies the balance table for before/after comparisons.
func (f *fixture) balances() map[BalanceKey]string {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make(map[BalanceKey]string)
	for k, v := range f.l.st.balances.rows {
		if !v.IsZero() {
			out[k] = v.Dec()
		}
	}
	return out
}
