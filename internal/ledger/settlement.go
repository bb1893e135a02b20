package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Reconcile applies the outcome of a pending request exactly once. A second
// outcome for the same request fails with ErrAlreadyReconciled and changes
// nothing. A continuation that cannot apply (for example the auth lookup
// returned a different owner) leaves the ledger untouched and marks the
// request failed.
func (l *Ledger) Reconcile(ctx context.Context, caller, id string, out Outcome) (Request, error) {
	var result Request
	err := l.exec(ctx, "reconcile", func(tx *txn, p Policy) error {
		if err := p.requireRelayer(caller); err != nil {
			return err
		}
		req, ok := l.st.requests.get(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
		}
		if !req.Pending() {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyReconciled, id, req.Status)
		}

		sp := tx.savepoint()
		status, err := l.resume(tx, p, req, out)
		if err != nil {
			tx.rollbackTo(sp)
			status = StatusFailed
			req.Failure = err.Error()
		} else if !out.Success {
			req.Failure = out.Error
		}
		req.Status = status
		req.UpdatedAt = l.now()
		l.st.requests.set(tx, id, req)
		result = req

		entry := logrus.WithFields(logrus.Fields{
			"request_id": id,
			"kind":       req.Kind,
			"operation":  req.Operation,
			"account":    req.Account,
			"token":      req.Token.String(),
			"status":     status,
		})
		switch status {
		case StatusCompensated:
			entry.Warn("settlement failed, ledger compensated")
		case StatusFailed:
			entry.WithField("reason", req.Failure).Warn("settlement continuation failed")
		default:
			entry.Info("settlement reconciled")
		}
		return nil
	})
	return result, err
}

func (l *Ledger) resume(tx *txn, p Policy, r Request, out Outcome) (RequestStatus, error) {
	switch r.Operation {
	case OpWithdraw:
		if out.Success {
			return StatusSettled, nil
		}
		if err := l.credit(tx, r.Account, r.Token, r.Amount, EventIncreaseDeposit); err != nil {
			return StatusFailed, err
		}
		return StatusCompensated, nil
	case OpAuthWithdraw:
		if out.Success {
			return StatusSettled, nil
		}
		if r.Service == nil {
			return StatusFailed, fmt.Errorf("%w: request %s has no service account", ErrInvalidArgument, r.ID)
		}
		if err := l.st.increase(tx, unclaimedKey(*r.Service, r.Token), r.Amount); err != nil {
			return StatusFailed, err
		}
		return StatusCompensated, nil
	case OpNativePayout:
		// Native transfers are terminal; a failure is only recorded.
		if out.Success {
			return StatusSettled, nil
		}
		return StatusFailed, nil
	case OpTipResolve:
		return l.resumeTip(tx, p, r, out)
	case OpWithdrawResolve:
		return l.resumeWithdrawWithAuth(tx, p, r, out)
	case OpClaimContacts:
		return l.resumeClaimContacts(tx, p, r, out)
	case OpClaimWrap:
		return l.resumeClaimWrap(tx, p, r, out)
	case OpClaimSwap:
		return l.resumeClaimSwap(tx, p, r, out)
	case OpClaimCustody:
		// The reward tokens were credited when the swap settled; this only
		// moves custody out of the AMM.
		if out.Success {
			return StatusSettled, nil
		}
		return StatusFailed, nil
	case OpRewardMint:
		return l.resumeRewardMint(tx, r, out)
	case OpUnwrapTreasury:
		return l.resumeUnwrap(tx, r, out)
	}
	return StatusFailed, fmt.Errorf("%w: unknown operation %q", ErrInvalidArgument, r.Operation)
}
