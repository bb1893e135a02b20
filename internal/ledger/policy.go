package ledger

import "fmt"

// Policy is a read-only snapshot of configuration, whitelist and chat
// settings taken at the start of an operation.
type Policy struct {
	cfg    Config
	tokens map[TokenID]WhitelistedToken
	chats  map[int64]ChatSettings
}

// NewPolicy builds a snapshot outside a ledger, mainly for tests and tools.
func NewPolicy(cfg Config, tokens map[TokenID]WhitelistedToken, chats map[int64]ChatSettings) Policy {
	return Policy{cfg: cfg, tokens: tokens, chats: chats}
}

func (p Policy) Config() Config {
	return p.cfg
}

func (p Policy) requireOwner(caller string) error {
	if caller == "" || caller != p.cfg.Owner {
		return fmt.Errorf("%w: %q is not the owner", ErrAccessDenied, caller)
	}
	return nil
}

func (p Policy) requireOperator(caller string) error {
	if caller == "" || caller != p.cfg.Operator {
		return fmt.Errorf("%w: %q is not the operator", ErrAccessDenied, caller)
	}
	return nil
}

func (p Policy) requireTips() error {
	if !p.cfg.TipAvailable {
		return fmt.Errorf("%w: tips are disabled", ErrSubsystemPaused)
	}
	return nil
}

func (p Policy) requireWithdraw() error {
	if !p.cfg.WithdrawAvailable {
		return fmt.Errorf("%w: deposits and withdrawals are disabled", ErrSubsystemPaused)
	}
	return nil
}

// Token returns the whitelist entry for token.
func (p Policy) Token(token TokenID) (WhitelistedToken, error) {
	w, ok := p.tokens[token]
	if !ok {
		return WhitelistedToken{}, fmt.Errorf("%w: %s", ErrTokenNotWhitelisted, token)
	}
	return w, nil
}

func (p Policy) IsWhitelisted(token TokenID) bool {
	_, ok := p.tokens[token]
	return ok
}

func (p Policy) Chat(chat int64) (ChatSettings, bool) {
	if chat == 0 {
		return ChatSettings{}, false
	}
	s, ok := p.chats[chat]
	return s, ok
}

func (p Policy) IsRewardToken(token TokenID) bool {
	return token == p.cfg.RewardToken
}

// TreasuryFee is the fee carved out of a peer tip. Reward-token tips are free.
func (p Policy) TreasuryFee(token TokenID, amount Amount) Amount {
	if p.IsRewardToken(token) {
		return Amount{}
	}
	return p.cfg.TreasuryFee.Apply(amount)
}

// ServiceFee applies only on the treasury-to-reward-token conversion path.
func (p Policy) ServiceFee(amount Amount) Amount {
	return p.cfg.ServiceFee.Apply(amount)
}

func (p Policy) swapRoute(token TokenID) (*SwapRoute, error) {
	w, err := p.Token(token)
	if err != nil {
		return nil, err
	}
	if w.Swap == nil {
		return nil, fmt.Errorf("%w: %s", ErrSwapNotAllowed, token)
	}
	return w.Swap, nil
}
