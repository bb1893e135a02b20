package ledger

import "fmt"

// BalanceKind 余额实体类型
type BalanceKind string

const (
	BalanceDeposit         BalanceKind = "deposit"
	BalanceUnclaimedTip    BalanceKind = "unclaimed_tip"
	BalanceTreasury        BalanceKind = "treasury"
	BalanceTreasuryShare   BalanceKind = "treasury_by_account"
	BalanceTreasuryClaimed BalanceKind = "treasury_claimed"
	BalanceServiceFees     BalanceKind = "service_fees"
	BalanceRewardPoints    BalanceKind = "user_tokens_to_claim"
	BalanceMinted          BalanceKind = "tiptokens_minted"
	BalanceBurned          BalanceKind = "tiptokens_burned"
)

// BalanceKey addresses one balance row. Principal is a NEAR account id, a
// service account key, or empty for pools and counters.
type BalanceKey struct {
	Kind      BalanceKind
	Principal string
	Token     TokenID
}

func depositKey(account string, token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceDeposit, Principal: account, Token: token}
}

func unclaimedKey(acc ServiceAccount, token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceUnclaimedTip, Principal: acc.Key(), Token: token}
}

func treasuryKey(token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceTreasury, Token: token}
}

func treasuryShareKey(account string, token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceTreasuryShare, Principal: account, Token: token}
}

func treasuryClaimedKey(token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceTreasuryClaimed, Token: token}
}

func serviceFeesKey(token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceServiceFees, Token: token}
}

func rewardPointsKey(account string, token TokenID) BalanceKey {
	return BalanceKey{Kind: BalanceRewardPoints, Principal: account, Token: token}
}

func counterKey(kind BalanceKind) BalanceKey {
	return BalanceKey{Kind: kind}
}

func (k BalanceKey) String() string {
	if k.Principal == "" {
		return fmt.Sprintf("%s[%s]", k.Kind, k.Token)
	}
	return fmt.Sprintf("%s[%s,%s]", k.Kind, k.Principal, k.Token)
}

// balance returns zero for absent rows.
func (s *state) balance(k BalanceKey) Amount {
	v, _ := s.balances.get(k)
	return v
}

func (s *state) increase(tx *txn, k BalanceKey, amount Amount) error {
	if amount.IsZero() {
		return nil
	}
	next, err := addAmounts(s.balance(k), amount)
	if err != nil {
		return fmt.Errorf("increase %s: %w", k, err)
	}
	s.balances.set(tx, k, next)
	return nil
}

// decrease is the only path that lowers a balance.
func (s *state) decrease(tx *txn, k BalanceKey, amount Amount) error {
	if amount.IsZero() {
		return nil
	}
	next, err := subAmounts(s.balance(k), amount)
	if err != nil {
		return fmt.Errorf("decrease %s: %w", k, err)
	}
	s.balances.set(tx, k, next)
	return nil
}

func (s *state) transfer(tx *txn, from, to BalanceKey, amount Amount) error {
	if err := s.decrease(tx, from, amount); err != nil {
		return err
	}
	return s.increase(tx, to, amount)
}

// zero empties a balance and returns what it held. The row is kept.
func (s *state) zero(tx *txn, k BalanceKey) Amount {
	v := s.balance(k)
	if !v.IsZero() {
		s.balances.set(tx, k, Amount{})
	}
	return v
}
