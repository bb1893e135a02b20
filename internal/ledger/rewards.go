package ledger

import (
	"context"
	"fmt"
)

// ClaimRewardTokens mints the caller's accrued reward points of token as
// reward tokens. Only points accrued on native-currency tips convert.
func (l *Ledger) ClaimRewardTokens(ctx context.Context, caller string, token TokenID) (Request, error) {
	var issued Request
	err := l.exec(ctx, "claim_reward_tokens", func(tx *txn, p Policy) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		var err error
		issued, err = l.mintRewards(tx, p, caller, token)
		return err
	})
	return issued, err
}

// ClaimRewardTokensForChat is ClaimRewardTokens for the chat admin's points,
// callable only by that admin.
func (l *Ledger) ClaimRewardTokensForChat(ctx context.Context, caller string, chat int64, token TokenID) (Request, error) {
	var issued Request
	err := l.exec(ctx, "claim_reward_tokens_for_chat", func(tx *txn, p Policy) error {
		settings, ok := p.Chat(chat)
		if !ok {
			return fmt.Errorf("%w: chat %d has no settings", ErrInvalidArgument, chat)
		}
		if caller == "" || caller != settings.Admin {
			return fmt.Errorf("%w: %q is not the admin of chat %d", ErrAccessDenied, caller, chat)
		}
		var err error
		issued, err = l.mintRewards(tx, p, settings.Admin, token)
		return err
	})
	return issued, err
}

func (l *Ledger) mintRewards(tx *txn, p Policy, account string, token TokenID) (Request, error) {
	key := rewardPointsKey(account, token)
	points := l.st.balance(key)
	if points.IsZero() {
		return Request{}, fmt.Errorf("%w: nothing to claim", ErrInsufficientBalance)
	}
	if !token.IsNative() {
		return Request{}, fmt.Errorf("%w: only points from native tips convert", ErrInvalidArgument)
	}
	minted := l.st.balance(counterKey(BalanceMinted))
	total, err := addAmounts(minted, points)
	if err != nil {
		return Request{}, err
	}
	if total.Gt(&p.cfg.MaxDistribution) {
		return Request{}, fmt.Errorf("%w: %s minted, %s requested", ErrDistributionExhausted, minted.Dec(), points.Dec())
	}
	l.st.zero(tx, key)
	if err := l.st.increase(tx, counterKey(BalanceMinted), points); err != nil {
		return Request{}, err
	}
	tx.emit(newEvent(EventRewardTokensMinted, map[string]string{"account_id": account, "amount": points.Dec()}))
	return l.issue(tx, Request{
		Kind: KindRewardTransfer, Operation: OpRewardMint,
		Account: account, Receiver: account, Token: p.cfg.RewardToken, Amount: points, Origin: token,
	}), nil
}

// resumeRewardMint restores the points and the minted counter when the
// reward-token transfer failed.
func (l *Ledger) resumeRewardMint(tx *txn, r Request, out Outcome) (RequestStatus, error) {
	if out.Success {
		return StatusSettled, nil
	}
	if err := l.st.decrease(tx, counterKey(BalanceMinted), r.Amount); err != nil {
		return StatusFailed, err
	}
	if err := l.st.increase(tx, rewardPointsKey(r.Account, r.Origin), r.Amount); err != nil {
		return StatusFailed, err
	}
	return StatusCompensated, nil
}
