package ledger

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileGuards(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 10)
	res, err := f.l.Withdraw(f.ctx, alice, usdc, nil)
	require.NoError(t, err)

	_, err = f.l.Reconcile(f.ctx, alice, res.Request.ID, Outcome{Success: false})
	require.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.l.Reconcile(f.ctx, operator, "missing", Outcome{Success: true})
	require.ErrorIs(t, err, ErrUnknownRequest)

	r, err := f.l.Reconcile(f.ctx, operator, res.Request.ID, Outcome{Success: true})
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, r.Status)
	_, err = f.l.Reconcile(f.ctx, operator, res.Request.ID, Outcome{Success: false})
	require.ErrorIs(t, err, ErrAlreadyReconciled)
	requireAmount(t, 0, f.l.DepositOf(alice, usdc))
	assert.Empty(t, f.l.PendingRequests())
}

func TestAdminOperationsRequireOwner(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.l.SetTipAvailable(f.ctx, operator, false), ErrAccessDenied)
	require.ErrorIs(t, f.l.SetWithdrawAvailable(f.ctx, alice, false), ErrAccessDenied)
	require.ErrorIs(t, f.l.WhitelistToken(f.ctx, operator, usdc, WhitelistedToken{}), ErrAccessDenied)
	require.ErrorIs(t, f.l.RemoveWhitelistedToken(f.ctx, alice, usdc), ErrAccessDenied)
	require.ErrorIs(t, f.l.SetChatSettings(f.ctx, alice, testChat, ChatSettings{Admin: alice}), ErrAccessDenied)
	require.ErrorIs(t, f.l.UpdateConfig(f.ctx, operator, testConfig()), ErrAccessDenied)

	require.ErrorIs(t, f.l.SetChatSettings(f.ctx, owner, testChat, ChatSettings{Admin: alice, FeePercent: 11}), ErrInvalidArgument)
	bad := testConfig()
	bad.TreasuryFee = FeeFraction{Numerator: 3, Denominator: 2}
	require.ErrorIs(t, f.l.UpdateConfig(f.ctx, owner, bad), ErrInvalidArgument)
	assert.Equal(t, testConfig().TreasuryFee, f.l.Config().TreasuryFee)

	require.NoError(t, f.l.RemoveWhitelistedToken(f.ctx, owner, usdc))
	_, ok := f.l.WhitelistedTokens()[usdc]
	assert.False(t, ok)
	require.NoError(t, f.l.SetChatSettings(f.ctx, owner, testChat, ChatSettings{Admin: alice, FeePercent: 10}))
	require.NoError(t, f.l.DeleteChatSettings(f.ctx, owner, testChat))
	_, ok = f.l.ChatSettings(testChat)
	assert.False(t, ok)
}

func TestLedgerReloadsFromStore(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 100)
	f.tip(alice, bob, usdc, 30)
	require.NoError(t, f.l.LinkServiceAccount(f.ctx, operator, bob, TelegramAccount(9)))
	res, err := f.l.Withdraw(f.ctx, bob, usdc, nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Owner = "someone-else.near"
	reloaded, err := New(f.ctx, f.store, &recordingDispatcher{}, cfg)
	require.NoError(t, err)

	assert.Equal(t, owner, reloaded.Config().Owner)
	requireAmount(t, 70, reloaded.DepositOf(alice, usdc))
	requireAmount(t, 3, reloaded.Treasury(usdc))
	ownerOf, ok := reloaded.OwnerOf(TelegramAccount(9))
	require.True(t, ok)
	assert.Equal(t, bob, ownerOf)
	pending := reloaded.PendingRequests()
	require.Len(t, pending, 1)
	assert.Equal(t, res.Request.ID, pending[0].ID)

	r, err := reloaded.Reconcile(f.ctx, SelfPrincipal, res.Request.ID, Outcome{Success: false})
	require.NoError(t, err)
	assert.Equal(t, StatusCompensated, r.Status)
	requireAmount(t, 27, reloaded.DepositOf(bob, usdc))
}

func TestNewRejectsInvalidInitialConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceFee = FeeFraction{}
	_, err := New(context.Background(), NewMemoryStore(), &recordingDispatcher{}, cfg)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// TestConservation runs a random mix of operations on one token and checks
// that deposits, unclaimed tips, treasury and service fees always add up to
// deposited minus successfully withdrawn value.
func TestConservation(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))
	accounts := []string{alice, bob, carol}
	services := []ServiceAccount{TelegramAccount(1), HandleAccount(ServiceTwitter, "x"), HandleAccount(ServiceGitHub, "y")}
	require.NoError(t, f.l.LinkServiceAccount(f.ctx, operator, carol, services[2]))

	var deposited, withdrawn uint64
	for i := 0; i < 500; i++ {
		who := accounts[rng.Intn(len(accounts))]
		switch rng.Intn(5) {
		case 0:
			v := uint64(rng.Intn(1_000) + 1)
			f.deposit(who, usdc, v)
			deposited += v
		case 1:
			_, _ = f.l.Tip(f.ctx, TipRequest{Sender: who, ReceiverAccount: accounts[rng.Intn(len(accounts))], Token: usdc, Amount: amt(uint64(rng.Intn(500) + 1))})
		case 2:
			svc := services[rng.Intn(len(services))]
			_, _ = f.l.Tip(f.ctx, TipRequest{Sender: who, ReceiverService: &svc, Token: usdc, Amount: amt(uint64(rng.Intn(500) + 1))})
		case 3:
			res, err := f.l.Withdraw(f.ctx, who, usdc, ptr(amt(uint64(rng.Intn(300)+1))))
			if err != nil {
				require.ErrorIs(t, err, ErrInsufficientBalance)
				continue
			}
			ok := rng.Intn(2) == 0
			f.reconcile(res.Request.ID, Outcome{Success: ok})
			if ok {
				withdrawn += res.Amount.Uint64()
			}
		case 4:
			svc := services[rng.Intn(len(services))]
			if _, ok := f.l.OwnerOf(svc); !ok {
				_ = f.l.LinkServiceAccount(f.ctx, operator, who, svc)
			}
			_, _ = f.l.TransferUnclaimedToDeposit(f.ctx, operator, svc, usdc)
		}
		requireAmount(t, deposited-withdrawn, f.conserved(usdc), "step %d", i)
	}
	assert.Empty(t, f.l.PendingRequests())
}
