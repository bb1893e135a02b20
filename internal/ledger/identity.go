package ledger

import (
	"context"
	"fmt"
)

func serviceEvent(name, account string, svc ServiceAccount) Event {
	return newEvent(name, map[string]string{"account_id": account, "service_account": svc.Key()})
}

// LinkServiceAccount binds svc to a NEAR account. A NEAR account holds at most
// one service account per service kind and a service account has at most one
// owner.
func (l *Ledger) LinkServiceAccount(ctx context.Context, caller, account string, svc ServiceAccount) error {
	return l.exec(ctx, "link_service_account", func(tx *txn, p Policy) error {
		if err := p.requireOperator(caller); err != nil {
			return err
		}
		if account == "" {
			return fmt.Errorf("%w: empty account", ErrInvalidArgument)
		}
		if err := svc.Verify(); err != nil {
			return err
		}
		idx := linkIndexKey{Account: account, Service: svc.Service}
		if _, taken := l.st.linkIndex.get(idx); taken {
			return fmt.Errorf("%w: %s already has a %s account", ErrInvalidArgument, account, svc.Service)
		}
		if owner, taken := l.st.links.get(svc); taken {
			return fmt.Errorf("%w: %s is linked to %s", ErrInvalidArgument, svc, owner)
		}
		l.st.links.set(tx, svc, account)
		l.st.linkIndex.set(tx, idx, svc)
		tx.emit(serviceEvent(EventInsertServiceAccount, account, svc))
		return nil
	})
}

func (l *Ledger) UnlinkServiceAccount(ctx context.Context, caller, account string, svc ServiceAccount) error {
	return l.exec(ctx, "unlink_service_account", func(tx *txn, p Policy) error {
		if err := p.requireOperator(caller); err != nil {
			return err
		}
		if err := svc.Verify(); err != nil {
			return err
		}
		owner, ok := l.st.links.get(svc)
		if !ok || owner != account {
			return fmt.Errorf("%w: %s is not linked to %s", ErrInvalidArgument, svc, account)
		}
		l.st.links.del(tx, svc)
		l.st.linkIndex.del(tx, linkIndexKey{Account: account, Service: svc.Service})
		tx.emit(serviceEvent(EventRemoveServiceAccount, account, svc))
		return nil
	})
}

// ServiceTransfer is the result of moving an unclaimed bucket into a deposit.
type ServiceTransfer struct {
	Account    string
	Credited   Amount
	Commission Amount
	Request    *Request
}

// TransferUnclaimedToDeposit moves the unclaimed tips of svc into the deposit
// of the linked NEAR account, keeping the token's withdraw commission as a
// service fee.
func (l *Ledger) TransferUnclaimedToDeposit(ctx context.Context, caller string, svc ServiceAccount, token TokenID) (ServiceTransfer, error) {
	var res ServiceTransfer
	err := l.exec(ctx, "transfer_unclaimed_tips_to_deposit", func(tx *txn, p Policy) error {
		var err error
		res, err = l.transferUnclaimed(tx, p, caller, svc, token)
		return err
	})
	return res, err
}

// WithdrawFromServiceAccount transfers the unclaimed bucket into the linked
// deposit and withdraws the credited amount in the same operation.
func (l *Ledger) WithdrawFromServiceAccount(ctx context.Context, caller string, svc ServiceAccount, token TokenID) (ServiceTransfer, error) {
	var res ServiceTransfer
	err := l.exec(ctx, "withdraw_from_service_account", func(tx *txn, p Policy) error {
		var err error
		if res, err = l.transferUnclaimed(tx, p, caller, svc, token); err != nil {
			return err
		}
		if err := l.st.decrease(tx, depositKey(res.Account, token), res.Credited); err != nil {
			return err
		}
		tx.emit(newEvent(EventWithdrawFromServiceAccount, map[string]string{
			"account_id": res.Account, "service_account": svc.Key(), "token_id": token.String(), "amount": res.Credited.Dec(),
		}))
		r := l.payout(tx, res.Account, token, res.Credited, OpWithdraw, &svc)
		res.Request = &r
		return nil
	})
	return res, err
}

func (l *Ledger) transferUnclaimed(tx *txn, p Policy, caller string, svc ServiceAccount, token TokenID) (ServiceTransfer, error) {
	if err := p.requireOperator(caller); err != nil {
		return ServiceTransfer{}, err
	}
	if err := p.requireWithdraw(); err != nil {
		return ServiceTransfer{}, err
	}
	w, err := p.Token(token)
	if err != nil {
		return ServiceTransfer{}, err
	}
	if err := svc.Verify(); err != nil {
		return ServiceTransfer{}, err
	}
	owner, ok := l.st.links.get(svc)
	if !ok {
		return ServiceTransfer{}, fmt.Errorf("%w: %s is not linked", ErrContactNotAuthorized, svc)
	}
	bucket := unclaimedKey(svc, token)
	balance := l.st.balance(bucket)
	if !balance.Gt(&w.WithdrawCommission) {
		return ServiceTransfer{}, fmt.Errorf("%w: %s does not cover commission %s", ErrAmountTooSmall, balance.Dec(), w.WithdrawCommission.Dec())
	}
	l.st.zero(tx, bucket)
	net, err := subAmounts(balance, w.WithdrawCommission)
	if err != nil {
		return ServiceTransfer{}, err
	}
	if err := l.credit(tx, owner, token, net, EventIncreaseDeposit); err != nil {
		return ServiceTransfer{}, err
	}
	if err := l.serviceFeesAdd(tx, token, w.WithdrawCommission); err != nil {
		return ServiceTransfer{}, err
	}
	return ServiceTransfer{Account: owner, Credited: net, Commission: w.WithdrawCommission}, nil
}

// WithdrawWithAuth lets the owner of svc, as confirmed by the auth
// collaborator, pull its unclaimed bucket out of the ledger.
func (l *Ledger) WithdrawWithAuth(ctx context.Context, caller string, svc ServiceAccount, token TokenID) (Request, error) {
	var issued Request
	err := l.exec(ctx, "withdraw_with_auth", func(tx *txn, p Policy) error {
		if err := l.checkServiceWithdraw(p, caller, svc, token); err != nil {
			return err
		}
		issued = l.issue(tx, Request{
			Kind: KindAuthResolve, Operation: OpWithdrawResolve,
			Account: caller, Token: token, Service: &svc,
		})
		return nil
	})
	return issued, err
}

func (l *Ledger) checkServiceWithdraw(p Policy, caller string, svc ServiceAccount, token TokenID) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if err := p.requireWithdraw(); err != nil {
		return err
	}
	if _, err := p.Token(token); err != nil {
		return err
	}
	if err := svc.Verify(); err != nil {
		return err
	}
	balance := l.st.balance(unclaimedKey(svc, token))
	if balance.IsZero() {
		return fmt.Errorf("%w: no unclaimed %s for %s", ErrInsufficientBalance, token, svc)
	}
	return nil
}

func (l *Ledger) resumeWithdrawWithAuth(tx *txn, p Policy, r Request, out Outcome) (RequestStatus, error) {
	if !out.Success {
		return StatusFailed, fmt.Errorf("%w: owner lookup: %s", ErrExternalCallFailed, out.Error)
	}
	if out.Owner == "" || out.Owner != r.Account {
		return StatusFailed, fmt.Errorf("%w: %s does not own %s", ErrContactNotAuthorized, r.Account, r.Service)
	}
	if err := l.checkServiceWithdraw(p, r.Account, *r.Service, r.Token); err != nil {
		return StatusFailed, err
	}
	amount := l.st.zero(tx, unclaimedKey(*r.Service, r.Token))
	tx.emit(newEvent(EventWithdrawFromServiceAccount, map[string]string{
		"account_id": r.Account, "service_account": r.Service.Key(), "token_id": r.Token.String(), "amount": amount.Dec(),
	}))
	l.payout(tx, r.Account, r.Token, amount, OpAuthWithdraw, r.Service)
	return StatusSettled, nil
}

// ClaimContactTips asks the auth collaborator for the caller's contacts and
// moves the unclaimed tips of every returned contact into the caller's deposit.
func (l *Ledger) ClaimContactTips(ctx context.Context, caller string, token TokenID) (Request, error) {
	var issued Request
	err := l.exec(ctx, "claim_contact_tips", func(tx *txn, p Policy) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if err := p.requireWithdraw(); err != nil {
			return err
		}
		if _, err := p.Token(token); err != nil {
			return err
		}
		issued = l.issue(tx, Request{Kind: KindAuthContacts, Operation: OpClaimContacts, Account: caller, Token: token})
		return nil
	})
	return issued, err
}

func (l *Ledger) resumeClaimContacts(tx *txn, p Policy, r Request, out Outcome) (RequestStatus, error) {
	if !out.Success {
		return StatusFailed, fmt.Errorf("%w: contacts lookup: %s", ErrExternalCallFailed, out.Error)
	}
	if len(out.Contacts) == 0 {
		return StatusFailed, fmt.Errorf("%w: %s has no contacts", ErrContactNotAuthorized, r.Account)
	}
	if err := p.requireWithdraw(); err != nil {
		return StatusFailed, err
	}
	for _, c := range out.Contacts {
		if c.Verify() != nil {
			continue
		}
		amount := l.st.zero(tx, unclaimedKey(c, r.Token))
		if amount.IsZero() {
			continue
		}
		if err := l.credit(tx, r.Account, r.Token, amount, EventIncreaseDeposit); err != nil {
			return StatusFailed, err
		}
	}
	return StatusSettled, nil
}
