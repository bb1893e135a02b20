package ledger

import (
	"context"
	"fmt"
)

func treasuryEvent(name, account string, token TokenID, amount Amount) Event {
	return newEvent(name, map[string]string{"account_id": account, "token_id": token.String(), "amount": amount.Dec()})
}

// treasuryAdd credits the pool and the contributor's share.
func (l *Ledger) treasuryAdd(tx *txn, account string, token TokenID, amount Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.st.increase(tx, treasuryKey(token), amount); err != nil {
		return err
	}
	if err := l.st.increase(tx, treasuryShareKey(account, token), amount); err != nil {
		return err
	}
	tx.emit(treasuryEvent(EventTreasuryAdd, account, token, amount))
	return nil
}

// treasuryRemove takes amount out of the pool and the contributor's share and
// counts it as claimed.
func (l *Ledger) treasuryRemove(tx *txn, account string, token TokenID, amount Amount) error {
	if err := l.st.decrease(tx, treasuryShareKey(account, token), amount); err != nil {
		return err
	}
	if err := l.st.decrease(tx, treasuryKey(token), amount); err != nil {
		return err
	}
	if err := l.st.increase(tx, treasuryClaimedKey(token), amount); err != nil {
		return err
	}
	tx.emit(treasuryEvent(EventTreasuryRemove, account, token, amount))
	return nil
}

// treasuryRefund reverses treasuryRemove. claimed says whether amount was
// counted in TreasuryClaimed for this token.
func (l *Ledger) treasuryRefund(tx *txn, account string, token TokenID, amount Amount, claimed bool) error {
	if claimed {
		if err := l.st.decrease(tx, treasuryClaimedKey(token), amount); err != nil {
			return err
		}
	}
	return l.treasuryAdd(tx, account, token, amount)
}

func (l *Ledger) serviceFeesAdd(tx *txn, token TokenID, amount Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.st.increase(tx, serviceFeesKey(token), amount); err != nil {
		return err
	}
	tx.emit(newEvent(EventServiceFeesAdd, map[string]string{"token_id": token.String(), "amount": amount.Dec()}))
	return nil
}

func (l *Ledger) serviceFeesRemove(tx *txn, token TokenID, amount Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.st.decrease(tx, serviceFeesKey(token), amount); err != nil {
		return err
	}
	tx.emit(newEvent(EventServiceFeesRemove, map[string]string{"token_id": token.String(), "amount": amount.Dec()}))
	return nil
}

// ClaimTiptoken converts the caller's treasury share of token into the reward
// token through the AMM. Native currency is wrapped first. A nil amount
// claims the whole share.
func (l *Ledger) ClaimTiptoken(ctx context.Context, caller string, token TokenID, amount *Amount) (Request, error) {
	var issued Request
	err := l.exec(ctx, "claim_tiptoken", func(tx *txn, p Policy) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if p.IsRewardToken(token) {
			return fmt.Errorf("%w: the reward token is not claimable", ErrInvalidArgument)
		}
		swapToken := token
		if token.IsNative() {
			if p.cfg.WrappedNative.IsNative() {
				return fmt.Errorf("%w: no wrapped native token configured", ErrSwapNotAllowed)
			}
			swapToken = p.cfg.WrappedNative
		}
		if _, err := p.swapRoute(swapToken); err != nil {
			return err
		}

		claim := l.st.balance(treasuryShareKey(caller, token))
		if amount != nil {
			claim = *amount
		}
		if claim.IsZero() {
			return fmt.Errorf("%w: nothing to claim", ErrAmountTooSmall)
		}
		if err := l.treasuryRemove(tx, caller, token, claim); err != nil {
			return err
		}

		if token.IsNative() {
			issued = l.issue(tx, Request{
				Kind: KindWrap, Operation: OpClaimWrap,
				Account: caller, Receiver: p.cfg.WrappedNative.Contract,
				Token: token, Amount: claim, Origin: token,
			})
			return nil
		}
		var err error
		issued, err = l.beginSwap(tx, p, caller, token, claim, token)
		return err
	})
	return issued, err
}

// beginSwap takes the service fee and sends the rest of amount to the AMM.
func (l *Ledger) beginSwap(tx *txn, p Policy, account string, token TokenID, amount Amount, origin TokenID) (Request, error) {
	route, err := p.swapRoute(token)
	if err != nil {
		return Request{}, err
	}
	fee := p.ServiceFee(amount)
	toSwap, err := subAmounts(amount, fee)
	if err != nil {
		return Request{}, err
	}
	if toSwap.IsZero() {
		return Request{}, fmt.Errorf("%w: nothing left to swap after service fee", ErrAmountTooSmall)
	}
	if err := l.serviceFeesAdd(tx, token, fee); err != nil {
		return Request{}, err
	}
	return l.issue(tx, Request{
		Kind: KindSwap, Operation: OpClaimSwap,
		Account: account, Receiver: route.Contract,
		Token: token, Amount: toSwap, Fee: fee, Origin: origin, Route: route,
	}), nil
}

func (l *Ledger) resumeClaimWrap(tx *txn, p Policy, r Request, out Outcome) (RequestStatus, error) {
	if !out.Success {
		if err := l.treasuryRefund(tx, r.Account, r.Token, r.Amount, true); err != nil {
			return StatusFailed, err
		}
		return StatusCompensated, nil
	}
	wrapped := p.cfg.WrappedNative
	sp := tx.savepoint()
	if _, err := l.beginSwap(tx, p, r.Account, wrapped, r.Amount, r.Origin); err != nil {
		// The native value is wrapped now; park it in the wrapped treasury.
		tx.rollbackTo(sp)
		if err := l.treasuryAdd(tx, r.Account, wrapped, r.Amount); err != nil {
			return StatusFailed, err
		}
	}
	return StatusSettled, nil
}

// resumeClaimSwap credits the swap output as reward tokens, or undoes the
// whole claim when the swap produced nothing.
func (l *Ledger) resumeClaimSwap(tx *txn, p Policy, r Request, out Outcome) (RequestStatus, error) {
	if out.Success && !out.Output.IsZero() {
		reward := p.cfg.RewardToken
		if err := l.credit(tx, r.Account, reward, out.Output, EventIncreaseDeposit); err != nil {
			return StatusFailed, err
		}
		l.issue(tx, Request{
			Kind: KindAMMWithdraw, Operation: OpClaimCustody,
			Account: r.Account, Receiver: r.Receiver, Token: reward, Amount: out.Output,
		})
		return StatusSettled, nil
	}

	if err := l.serviceFeesRemove(tx, r.Token, r.Fee); err != nil {
		return StatusFailed, err
	}
	total, err := addAmounts(r.Amount, r.Fee)
	if err != nil {
		return StatusFailed, err
	}
	if err := l.treasuryRefund(tx, r.Account, r.Token, total, r.Origin == r.Token); err != nil {
		return StatusFailed, err
	}
	return StatusCompensated, nil
}

// UnwrapTreasury turns the caller's wrapped-native treasury share back into
// native currency.
func (l *Ledger) UnwrapTreasury(ctx context.Context, caller string, amount *Amount) (Request, error) {
	var issued Request
	err := l.exec(ctx, "unwrap_treasury", func(tx *txn, p Policy) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		wrapped := p.cfg.WrappedNative
		if wrapped.IsNative() {
			return fmt.Errorf("%w: no wrapped native token configured", ErrInvalidArgument)
		}
		share := l.st.balance(treasuryShareKey(caller, wrapped))
		if amount != nil {
			share = *amount
		}
		if share.IsZero() {
			return fmt.Errorf("%w: nothing to unwrap", ErrAmountTooSmall)
		}
		if err := l.treasuryRemove(tx, caller, wrapped, share); err != nil {
			return err
		}
		issued = l.issue(tx, Request{
			Kind: KindUnwrap, Operation: OpUnwrapTreasury,
			Account: caller, Receiver: wrapped.Contract, Token: wrapped, Amount: share, Origin: wrapped,
		})
		return nil
	})
	return issued, err
}

func (l *Ledger) resumeUnwrap(tx *txn, r Request, out Outcome) (RequestStatus, error) {
	if !out.Success {
		if err := l.treasuryRefund(tx, r.Account, r.Token, r.Amount, true); err != nil {
			return StatusFailed, err
		}
		return StatusCompensated, nil
	}
	if err := l.treasuryAdd(tx, r.Account, NativeToken(), r.Amount); err != nil {
		return StatusFailed, err
	}
	return StatusSettled, nil
}

// Redeem pays the caller a pro-rata share of the treasury of every listed
// token against their reward-token holding and records the holding as burned.
func (l *Ledger) Redeem(ctx context.Context, caller string, tokens []TokenID) (map[TokenID]Amount, error) {
	paid := make(map[TokenID]Amount)
	err := l.exec(ctx, "redeem_tiptokens", func(tx *txn, p Policy) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		reward := p.cfg.RewardToken
		holding := l.st.balance(depositKey(caller, reward))
		if holding.IsZero() {
			return fmt.Errorf("%w: nothing to redeem", ErrInsufficientBalance)
		}
		minted := l.st.balance(counterKey(BalanceMinted))
		if minted.IsZero() {
			return fmt.Errorf("%w: no reward tokens minted", ErrInsufficientBalance)
		}

		for _, token := range tokens {
			if token == reward {
				continue
			}
			if _, done := paid[token]; done {
				continue
			}
			pool := l.st.balance(treasuryKey(token))
			share, err := mulDiv(pool, holding, minted)
			if err != nil {
				return err
			}
			// Holdings bought on the AMM can exceed the minted supply.
			share = minAmount(share, pool)
			if err := l.st.decrease(tx, treasuryKey(token), share); err != nil {
				return err
			}
			if err := l.credit(tx, caller, token, share, EventIncreaseDeposit); err != nil {
				return err
			}
			paid[token] = share
		}
		if err := l.st.increase(tx, counterKey(BalanceBurned), holding); err != nil {
			return err
		}
		tx.emit(newEvent(EventRedeem, map[string]string{"account_id": caller, "amount": holding.Dec()}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
