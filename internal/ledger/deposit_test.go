package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositChecks(t *testing.T) {
	f := newFixture(t)

	err := f.l.Deposit(f.ctx, alice, DepositNotice{Account: alice, Token: native, Amount: amt(10)})
	require.ErrorIs(t, err, ErrAccessDenied)

	err = f.l.Deposit(f.ctx, operator, DepositNotice{Account: alice, Token: FungibleToken("scam.near"), Amount: amt(10)})
	require.ErrorIs(t, err, ErrTokenNotWhitelisted)

	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, native, WhitelistedToken{TipsAvailable: true, MinDeposit: amt(50)}))
	err = f.l.Deposit(f.ctx, operator, DepositNotice{Account: alice, Token: native, Amount: amt(49)})
	require.ErrorIs(t, err, ErrAmountTooSmall)

	require.NoError(t, f.l.SetWithdrawAvailable(f.ctx, owner, false))
	err = f.l.Deposit(f.ctx, operator, DepositNotice{Account: alice, Token: native, Amount: amt(50)})
	require.ErrorIs(t, err, ErrSubsystemPaused)

	require.NoError(t, f.l.SetWithdrawAvailable(f.ctx, owner, true))
	f.deposit(alice, native, 50)
	requireAmount(t, 50, f.l.DepositOf(alice, native))
}

func TestDepositOverflowIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.Deposit(f.ctx, operator, DepositNotice{Account: alice, Token: native, Amount: MaxAmount()}))

	err := f.l.Deposit(f.ctx, operator, DepositNotice{Account: alice, Token: native, Amount: amt(1)})
	require.ErrorIs(t, err, ErrOverflow)
	ceiling, got := MaxAmount(), f.l.DepositOf(alice, native)
	assert.Equal(t, ceiling.Dec(), got.Dec())
}

func TestOnTransferReceived(t *testing.T) {
	f := newFixture(t)

	unused, err := f.l.OnTransferReceived(f.ctx, operator, "usdc.near", alice, amt(100), "")
	require.NoError(t, err)
	assert.True(t, unused.IsZero())
	requireAmount(t, 100, f.l.DepositOf(alice, usdc))

	unused, err = f.l.OnTransferReceived(f.ctx, operator, "usdc.near", alice, amt(40), bob)
	require.NoError(t, err)
	assert.True(t, unused.IsZero())
	requireAmount(t, 40, f.l.DepositOf(bob, usdc))

	unused, err = f.l.OnTransferReceived(f.ctx, operator, "scam.near", alice, amt(70), "")
	require.NoError(t, err)
	requireAmount(t, 70, unused)

	require.NoError(t, f.l.SetWithdrawAvailable(f.ctx, owner, false))
	unused, err = f.l.OnTransferReceived(f.ctx, operator, "usdc.near", alice, amt(30), "")
	require.NoError(t, err)
	requireAmount(t, 30, unused)
	requireAmount(t, 100, f.l.DepositOf(alice, usdc))

	_, err = f.l.OnTransferReceived(f.ctx, alice, "usdc.near", alice, amt(30), "")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestWithdrawFailureRestoresBalanceOnce(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 100)

	res, err := f.l.Withdraw(f.ctx, alice, usdc, ptr(amt(40)))
	require.NoError(t, err)
	requireAmount(t, 60, f.l.DepositOf(alice, usdc))

	sent := f.disp.last(t)
	assert.Equal(t, res.Request.ID, sent.ID)
	assert.Equal(t, KindFTTransfer, sent.Kind)
	assert.Equal(t, alice, sent.Receiver)
	requireAmount(t, 40, sent.Amount)

	r := f.reconcile(sent.ID, Outcome{Success: false, Error: "receiver not registered"})
	assert.Equal(t, StatusCompensated, r.Status)
	requireAmount(t, 100, f.l.DepositOf(alice, usdc))

	_, err = f.l.Reconcile(f.ctx, SelfPrincipal, sent.ID, Outcome{Success: false})
	require.ErrorIs(t, err, ErrAlreadyReconciled)
	requireAmount(t, 100, f.l.DepositOf(alice, usdc))
}

func TestWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 250)

	res, err := f.l.Withdraw(f.ctx, alice, usdc, nil)
	require.NoError(t, err)
	requireAmount(t, 250, res.Amount)
	r := f.reconcile(res.Request.ID, Outcome{Success: true})
	assert.Equal(t, StatusSettled, r.Status)
	requireAmount(t, 0, f.l.DepositOf(alice, usdc))
	requireAmount(t, 0, f.conserved(usdc))
}

func TestWithdrawNativeIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, native, 100)

	res, err := f.l.Withdraw(f.ctx, alice, native, ptr(amt(30)))
	require.NoError(t, err)
	assert.Equal(t, KindNativeTransfer, res.Request.Kind)

	r := f.reconcile(res.Request.ID, Outcome{Success: false, Error: "boom"})
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "boom", r.Failure)
	requireAmount(t, 70, f.l.DepositOf(alice, native))
}

func TestWithdrawPreconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Withdraw(f.ctx, alice, usdc, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	f.deposit(alice, usdc, 10)
	_, err = f.l.Withdraw(f.ctx, alice, usdc, ptr(amt(11)))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = f.l.Withdraw(f.ctx, alice, usdc, ptr(amt(0)))
	require.ErrorIs(t, err, ErrAmountTooSmall)

	require.NoError(t, f.l.SetWithdrawAvailable(f.ctx, owner, false))
	_, err = f.l.Withdraw(f.ctx, alice, usdc, nil)
	require.ErrorIs(t, err, ErrSubsystemPaused)
	requireAmount(t, 10, f.l.DepositOf(alice, usdc))
	assert.Zero(t, f.disp.count())
}

func TestDispatchFailureKeepsRequestPending(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 10)
	f.disp.fail = errors.New("bus down")

	res, err := f.l.Withdraw(f.ctx, alice, usdc, nil)
	require.NoError(t, err)
	pending := f.l.PendingRequests()
	require.Len(t, pending, 1)
	assert.Equal(t, res.Request.ID, pending[0].ID)
}

func TestStoreFailureLeavesNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 100)
	before := f.balances()
	sent := f.disp.count()

	dbErr := errors.New("db down")
	f.store.FailNext = dbErr
	_, err := f.l.Withdraw(f.ctx, alice, usdc, nil)
	require.ErrorIs(t, err, dbErr)
	assert.Equal(t, before, f.balances())
	assert.Equal(t, sent, f.disp.count())
	assert.Empty(t, f.l.PendingRequests())

	f.tip(alice, bob, usdc, 50)
}
