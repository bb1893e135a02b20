package ledger

import (
	"context"
	"fmt"
	"strconv"
)

// TipRequest 打赏参数。ReceiverAccount 与 ReceiverService 必须且只能设置一个。
type TipRequest struct {
	Sender          string
	ReceiverAccount string
	ReceiverService *ServiceAccount
	Token           TokenID
	Amount          Amount
	ChatID          int64
}

// TipResult describes where a tip landed.
type TipResult struct {
	Fee             Amount
	Net             Amount
	CreditedAccount string
	Unclaimed       *ServiceAccount
}

// recipient is a resolved tip destination: a NEAR account deposit or an
// unclaimed bucket of a service account.
type recipient struct {
	account string
	service *ServiceAccount
}

var chatShare = FeeFraction{Numerator: 4, Denominator: 10}

// Tip moves amount from the sender's deposit to the receiver, carving the
// treasury fee out of it. A service-account receiver linked to a NEAR account
// is paid into that account's deposit, otherwise into its unclaimed bucket.
func (l *Ledger) Tip(ctx context.Context, req TipRequest) (TipResult, error) {
	var res TipResult
	err := l.exec(ctx, "tip", func(tx *txn, p Policy) error {
		if err := l.checkTip(p, req); err != nil {
			return err
		}
		to := recipient{account: req.ReceiverAccount}
		if req.ReceiverService != nil {
			if owner, ok := l.st.links.get(*req.ReceiverService); ok {
				to = recipient{account: owner}
			} else {
				svc := *req.ReceiverService
				to = recipient{service: &svc}
			}
		}
		var err error
		res, err = l.applyTip(tx, p, req.Sender, to, req.Token, req.Amount, req.ChatID)
		return err
	})
	return res, err
}

// checkTip validates every tip precondition without writing.
func (l *Ledger) checkTip(p Policy, req TipRequest) error {
	if err := requireCaller(req.Sender); err != nil {
		return err
	}
	if err := p.requireTips(); err != nil {
		return err
	}
	w, err := p.Token(req.Token)
	if err != nil {
		return err
	}
	if !w.TipsAvailable {
		return fmt.Errorf("%w: tips disabled for %s", ErrSubsystemPaused, req.Token)
	}
	switch {
	case req.ReceiverAccount == "" && req.ReceiverService == nil:
		return fmt.Errorf("%w: no tip receiver", ErrInvalidArgument)
	case req.ReceiverAccount != "" && req.ReceiverService != nil:
		return fmt.Errorf("%w: too many tip receivers", ErrInvalidArgument)
	}
	if req.ReceiverService != nil {
		if err := req.ReceiverService.Verify(); err != nil {
			return err
		}
	}
	if req.Amount.IsZero() || !req.Amount.Gt(&w.MinTip) {
		return fmt.Errorf("%w: tip %s must exceed %s", ErrAmountTooSmall, req.Amount.Dec(), w.MinTip.Dec())
	}
	balance := l.st.balance(depositKey(req.Sender, req.Token))
	if balance.Lt(&req.Amount) {
		return fmt.Errorf("%w: deposit %s, tip %s", ErrInsufficientBalance, balance.Dec(), req.Amount.Dec())
	}
	return nil
}

func (l *Ledger) applyTip(tx *txn, p Policy, sender string, to recipient, token TokenID, amount Amount, chat int64) (TipResult, error) {
	settings, inChat := p.Chat(chat)

	var fee Amount
	switch {
	case p.IsRewardToken(token):
	case inChat:
		fee = settings.fee().Apply(amount)
	default:
		fee = p.TreasuryFee(token, amount)
	}
	net, err := subAmounts(amount, fee)
	if err != nil {
		return TipResult{}, err
	}

	if err := l.st.decrease(tx, depositKey(sender, token), amount); err != nil {
		return TipResult{}, err
	}

	res := TipResult{Fee: fee, Net: net}
	receiver := to.account
	if to.service != nil {
		if err := l.st.increase(tx, unclaimedKey(*to.service, token), net); err != nil {
			return TipResult{}, err
		}
		res.Unclaimed = to.service
		receiver = to.service.Key()
	} else {
		if err := l.credit(tx, to.account, token, net, EventIncreaseDeposit); err != nil {
			return TipResult{}, err
		}
		res.CreditedAccount = to.account
	}

	if inChat {
		if err := l.chatFee(tx, p, settings, sender, token, amount, fee, chat); err != nil {
			return TipResult{}, err
		}
	} else if err := l.treasuryAdd(tx, sender, token, fee); err != nil {
		return TipResult{}, err
	}

	data := map[string]string{
		"sender_id":   sender,
		"receiver_id": receiver,
		"token_id":    token.String(),
		"amount":      amount.Dec(),
		"fee":         fee.Dec(),
	}
	if chat != 0 {
		data["chat_id"] = strconv.FormatInt(chat, 10)
	}
	tx.emit(newEvent(EventTip, data))
	return res, nil
}

// chatFee puts the whole fee into the treasury pool and accrues 40% of it as
// reward points to the chat admin and 40% to the sender. The remainder is not
// attributed to anyone.
func (l *Ledger) chatFee(tx *txn, p Policy, settings ChatSettings, sender string, token TokenID, amount, fee Amount, chat int64) error {
	if !fee.IsZero() {
		if err := l.st.increase(tx, treasuryKey(token), fee); err != nil {
			return err
		}
		tx.emit(newEvent(EventTreasuryAdd, map[string]string{
			"chat_id": strconv.FormatInt(chat, 10), "token_id": token.String(), "amount": fee.Dec(),
		}))
		share := chatShare.Apply(fee)
		if err := l.st.increase(tx, rewardPointsKey(settings.Admin, token), share); err != nil {
			return err
		}
		if err := l.st.increase(tx, rewardPointsKey(sender, token), share); err != nil {
			return err
		}
	}

	if !settings.TrackPoints || !token.IsNative() {
		return nil
	}
	threshold := p.cfg.ChatRewardThreshold
	if !amount.Gt(&threshold) {
		return nil
	}
	member := ChatMember{Account: sender, Chat: chat}
	if _, seen := l.st.rewardFlags.get(member); seen {
		return nil
	}
	l.st.rewardFlags.set(tx, member, struct{}{})
	points, _ := l.st.chatPoints.get(chat)
	l.st.chatPoints.set(tx, chat, points+1)
	return nil
}

// TipWithAuth asks the auth collaborator who owns the receiving service
// account and applies the tip once the answer arrives. Nothing is debited
// until then.
func (l *Ledger) TipWithAuth(ctx context.Context, req TipRequest) (Request, error) {
	var issued Request
	err := l.exec(ctx, "tip_with_auth", func(tx *txn, p Policy) error {
		if req.ReceiverService == nil || req.ReceiverAccount != "" {
			return fmt.Errorf("%w: auth tips need a service account receiver only", ErrInvalidArgument)
		}
		if err := l.checkTip(p, req); err != nil {
			return err
		}
		svc := *req.ReceiverService
		issued = l.issue(tx, Request{
			Kind: KindAuthResolve, Operation: OpTipResolve,
			Account: req.Sender, Token: req.Token, Amount: req.Amount,
			Service: &svc, ChatID: req.ChatID,
		})
		return nil
	})
	return issued, err
}

// resumeTip is the continuation of TipWithAuth.
func (l *Ledger) resumeTip(tx *txn, p Policy, r Request, out Outcome) (RequestStatus, error) {
	if !out.Success {
		return StatusFailed, fmt.Errorf("%w: owner lookup: %s", ErrExternalCallFailed, out.Error)
	}
	req := TipRequest{Sender: r.Account, ReceiverService: r.Service, Token: r.Token, Amount: r.Amount, ChatID: r.ChatID}
	if err := l.checkTip(p, req); err != nil {
		return StatusFailed, err
	}
	to := recipient{service: r.Service}
	if out.Owner != "" {
		to = recipient{account: out.Owner}
	}
	if _, err := l.applyTip(tx, p, r.Account, to, r.Token, r.Amount, r.ChatID); err != nil {
		return StatusFailed, err
	}
	return StatusSettled, nil
}
