package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTipSplitsTreasuryFee(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, native, 100)

	res := f.tip(alice, bob, native, 30)

	requireAmount(t, 3, res.Fee)
	requireAmount(t, 27, res.Net)
	requireAmount(t, 70, f.l.DepositOf(alice, native))
	requireAmount(t, 27, f.l.DepositOf(bob, native))
	requireAmount(t, 3, f.l.Treasury(native))
	requireAmount(t, 3, f.l.TreasuryShare(alice, native))
	requireAmount(t, 100, f.conserved(native))
}

func TestTipInChatAccruesRewardPoints(t *testing.T) {
	f := newFixture(t)
	f.setChat(ChatSettings{Admin: chatAdm, FeePercent: 10, TrackPoints: true})
	f.deposit(alice, native, 100_000)

	res, err := f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverAccount: bob, Token: native, Amount: amt(30_000), ChatID: testChat})
	require.NoError(t, err)

	requireAmount(t, 3_000, res.Fee)
	requireAmount(t, 70_000, f.l.DepositOf(alice, native))
	requireAmount(t, 27_000, f.l.DepositOf(bob, native))
	requireAmount(t, 3_000, f.l.Treasury(native))
	requireAmount(t, 1_200, f.l.RewardPoints(chatAdm, native))
	requireAmount(t, 1_200, f.l.RewardPoints(alice, native))
	requireAmount(t, 0, f.l.TreasuryShare(alice, native))
	requireAmount(t, 100_000, f.conserved(native))
	// Below the reward floor, no chat point.
	assert.Zero(t, f.l.ChatPoints(testChat))
}

func TestChatRewardPointOncePerSender(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.ChatRewardThreshold = amt(10)
	require.NoError(t, f.l.UpdateConfig(f.ctx, owner, cfg))
	f.setChat(ChatSettings{Admin: chatAdm, FeePercent: 5, TrackPoints: true})
	f.deposit(alice, native, 1_000)
	f.deposit(bob, native, 1_000)

	tipInChat := func(sender string, v uint64) {
		_, err := f.l.Tip(f.ctx, TipRequest{Sender: sender, ReceiverAccount: carol, Token: native, Amount: amt(v), ChatID: testChat})
		require.NoError(t, err)
	}
	tipInChat(alice, 100)
	tipInChat(alice, 100)
	assert.EqualValues(t, 1, f.l.ChatPoints(testChat))

	tipInChat(bob, 5) // not above the floor
	assert.EqualValues(t, 1, f.l.ChatPoints(testChat))
	tipInChat(bob, 11)
	assert.EqualValues(t, 2, f.l.ChatPoints(testChat))
}

func TestTipInRewardTokenIsFeeFree(t *testing.T) {
	f := newFixture(t)
	f.setChat(ChatSettings{Admin: chatAdm, FeePercent: 10})
	f.deposit(alice, rewardToken, 1_000)

	res := f.tip(alice, bob, rewardToken, 400)
	assert.True(t, res.Fee.IsZero())
	requireAmount(t, 400, res.Net)

	res, err := f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverAccount: bob, Token: rewardToken, Amount: amt(100), ChatID: testChat})
	require.NoError(t, err)
	assert.True(t, res.Fee.IsZero())

	requireAmount(t, 500, f.l.DepositOf(bob, rewardToken))
	requireAmount(t, 0, f.l.Treasury(rewardToken))
	requireAmount(t, 0, f.l.RewardPoints(alice, rewardToken))
}

func TestTipRejectsNonWhitelistedToken(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, native, 100)
	before := f.balances()

	_, err := f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverAccount: bob, Token: FungibleToken("scam.near"), Amount: amt(10)})
	require.ErrorIs(t, err, ErrTokenNotWhitelisted)
	assert.Equal(t, before, f.balances())
}

func TestTipPreconditions(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, native, 100)
	tg := TelegramAccount(42)

	cases := []struct {
		name string
		req  TipRequest
		want error
	}{
		{"overdraw", TipRequest{Sender: alice, ReceiverAccount: bob, Token: native, Amount: amt(101)}, ErrInsufficientBalance},
		{"zero amount", TipRequest{Sender: alice, ReceiverAccount: bob, Token: native}, ErrAmountTooSmall},
		{"no receiver", TipRequest{Sender: alice, Token: native, Amount: amt(1)}, ErrInvalidArgument},
		{"two receivers", TipRequest{Sender: alice, ReceiverAccount: bob, ReceiverService: &tg, Token: native, Amount: amt(1)}, ErrInvalidArgument},
		{"bad service account", TipRequest{Sender: alice, ReceiverService: &ServiceAccount{Service: ServiceTwitter, ID: 5}, Token: native, Amount: amt(1)}, ErrInvalidArgument},
		{"anonymous", TipRequest{ReceiverAccount: bob, Token: native, Amount: amt(1)}, ErrAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.balances()
			_, err := f.l.Tip(f.ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, f.balances())
		})
	}
}

func TestTipMustExceedMinTip(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, native, WhitelistedToken{TipsAvailable: true, MinDeposit: amt(1), MinTip: amt(10)}))
	f.deposit(alice, native, 100)

	_, err := f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverAccount: bob, Token: native, Amount: amt(10)})
	require.ErrorIs(t, err, ErrAmountTooSmall)
	f.tip(alice, bob, native, 11)
}

func TestTipKillSwitches(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, native, 100)

	require.NoError(t, f.l.SetTipAvailable(f.ctx, owner, false))
	_, err := f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverAccount: bob, Token: native, Amount: amt(10)})
	require.ErrorIs(t, err, ErrSubsystemPaused)

	require.NoError(t, f.l.SetTipAvailable(f.ctx, owner, true))
	require.NoError(t, f.l.WhitelistToken(f.ctx, owner, native, WhitelistedToken{TipsAvailable: false, MinDeposit: amt(1)}))
	_, err = f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverAccount: bob, Token: native, Amount: amt(10)})
	require.ErrorIs(t, err, ErrSubsystemPaused)
}

func TestTipToServiceAccount(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, usdc, 1_000)
	tw := HandleAccount(ServiceTwitter, "bob")

	res, err := f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverService: &tw, Token: usdc, Amount: amt(100)})
	require.NoError(t, err)
	require.NotNil(t, res.Unclaimed)
	requireAmount(t, 90, f.l.UnclaimedTips(tw, usdc))

	require.NoError(t, f.l.LinkServiceAccount(f.ctx, operator, bob, tw))
	res, err = f.l.Tip(f.ctx, TipRequest{Sender: alice, ReceiverService: &tw, Token: usdc, Amount: amt(100)})
	require.NoError(t, err)
	assert.Equal(t, bob, res.CreditedAccount)
	requireAmount(t, 90, f.l.DepositOf(bob, usdc))
	requireAmount(t, 90, f.l.UnclaimedTips(tw, usdc))
	requireAmount(t, 1_000, f.conserved(usdc))
}

func TestTipEmitsEvents(t *testing.T) {
	f := newFixture(t)
	f.deposit(alice, native, 100)

	ch := make(chan Event, 16)
	sub := f.l.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	f.tip(alice, bob, native, 30)

	var names []string
	for len(ch) > 0 {
		e := <-ch
		assert.Equal(t, EventStandard, e.Standard)
		names = append(names, e.Event)
		if e.Event == EventTip {
			assert.Equal(t, "30", e.Field("amount"))
			assert.Equal(t, "3", e.Field("fee"))
		}
	}
	assert.Equal(t, []string{EventIncreaseDeposit, EventTreasuryAdd, EventTip}, names)
}
