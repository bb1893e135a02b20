package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// DepositNotice reports value that arrived for account: attached native
// currency or a fungible transfer already received by the ledger's wallet.
type DepositNotice struct {
	Account string
	Token   TokenID
	Amount  Amount
}

// Deposit credits an observed deposit. Only the relayer may report deposits.
func (l *Ledger) Deposit(ctx context.Context, caller string, d DepositNotice) error {
	return l.exec(ctx, "deposit", func(tx *txn, p Policy) error {
		if err := p.requireRelayer(caller); err != nil {
			return err
		}
		if err := requireCaller(d.Account); err != nil {
			return fmt.Errorf("%w: deposit without account", ErrInvalidArgument)
		}
		if err := p.requireWithdraw(); err != nil {
			return err
		}
		w, err := p.Token(d.Token)
		if err != nil {
			return err
		}
		if d.Amount.IsZero() || d.Amount.Lt(&w.MinDeposit) {
			return fmt.Errorf("%w: deposit %s below minimum %s", ErrAmountTooSmall, d.Amount.Dec(), w.MinDeposit.Dec())
		}
		return l.credit(tx, d.Account, d.Token, d.Amount, EventDeposit)
	})
}

// credit adds to a deposit and emits the given event plus increase_deposit.
func (l *Ledger) credit(tx *txn, account string, token TokenID, amount Amount, name string) error {
	if err := l.st.increase(tx, depositKey(account, token), amount); err != nil {
		return err
	}
	data := map[string]string{"account_id": account, "token_id": token.String(), "amount": amount.Dec()}
	if name != "" && name != EventIncreaseDeposit {
		tx.emit(newEvent(name, data))
	}
	tx.emit(newEvent(EventIncreaseDeposit, data))
	return nil
}

// OnTransferReceived handles a fungible-token transfer notification and
// returns the amount that must be refunded to the sender. Unusable transfers
// are refunded in full rather than rejected.
func (l *Ledger) OnTransferReceived(ctx context.Context, caller, contract, sender string, amount Amount, payload string) (Amount, error) {
	unused := amount
	err := l.exec(ctx, "ft_on_transfer", func(tx *txn, p Policy) error {
		if err := p.requireRelayer(caller); err != nil {
			return err
		}
		token, err := ParseTokenID(contract)
		if err != nil || token.IsNative() {
			return fmt.Errorf("%w: token contract %q", ErrInvalidArgument, contract)
		}
		beneficiary := sender
		if target := strings.TrimSpace(payload); target != "" {
			beneficiary = target
		}
		fields := logrus.Fields{"token": token.String(), "sender": sender, "amount": amount.Dec()}

		w, err := p.Token(token)
		switch {
		case err != nil:
			logrus.WithFields(fields).Warn("refunding transfer of non-whitelisted token")
			return nil
		case !p.cfg.WithdrawAvailable:
			logrus.WithFields(fields).Warn("refunding transfer while deposits are paused")
			return nil
		case beneficiary == "" || amount.IsZero() || amount.Lt(&w.MinDeposit):
			logrus.WithFields(fields).Warn("refunding transfer below minimum deposit")
			return nil
		}
		if err := l.credit(tx, beneficiary, token, amount, EventDeposit); err != nil {
			return err
		}
		unused = Amount{}
		return nil
	})
	if err != nil {
		return amount, err
	}
	return unused, nil
}

// WithdrawResult 提现结果
type WithdrawResult struct {
	Amount  Amount
	Request Request
}

// Withdraw debits the caller's deposit and issues the outbound transfer.
// A nil amount withdraws the whole balance.
func (l *Ledger) Withdraw(ctx context.Context, caller string, token TokenID, amount *Amount) (WithdrawResult, error) {
	var res WithdrawResult
	err := l.exec(ctx, "withdraw", func(tx *txn, p Policy) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if err := p.requireWithdraw(); err != nil {
			return err
		}
		if _, err := p.Token(token); err != nil {
			return err
		}
		key := depositKey(caller, token)
		balance := l.st.balance(key)
		if balance.IsZero() {
			return fmt.Errorf("%w: zero %s balance", ErrInsufficientBalance, token)
		}
		requested := balance
		if amount != nil {
			requested = *amount
		}
		if requested.IsZero() {
			return fmt.Errorf("%w: withdraw amount is zero", ErrAmountTooSmall)
		}
		if err := l.st.decrease(tx, key, requested); err != nil {
			return err
		}
		tx.emit(newEvent(EventWithdraw, map[string]string{
			"account_id": caller, "token_id": token.String(), "amount": requested.Dec(),
		}))
		res = WithdrawResult{Amount: requested, Request: l.payout(tx, caller, token, requested, OpWithdraw, nil)}
		return nil
	})
	return res, err
}
