package ledger

import "sort"

func (l *Ledger) Config() Config {
	var cfg Config
	l.view(func(p Policy) { cfg = p.Config() })
	return cfg
}

// Balance returns any balance row; absent rows read as zero.
func (l *Ledger) Balance(k BalanceKey) Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.balance(k)
}

func (l *Ledger) DepositOf(account string, token TokenID) Amount {
	return l.Balance(depositKey(account, token))
}

func (l *Ledger) UnclaimedTips(svc ServiceAccount, token TokenID) Amount {
	return l.Balance(unclaimedKey(svc, token))
}

func (l *Ledger) Treasury(token TokenID) Amount {
	return l.Balance(treasuryKey(token))
}

func (l *Ledger) TreasuryShare(account string, token TokenID) Amount {
	return l.Balance(treasuryShareKey(account, token))
}

func (l *Ledger) TreasuryClaimed(token TokenID) Amount {
	return l.Balance(treasuryClaimedKey(token))
}

func (l *Ledger) ServiceFees(token TokenID) Amount {
	return l.Balance(serviceFeesKey(token))
}

func (l *Ledger) RewardPoints(account string, token TokenID) Amount {
	return l.Balance(rewardPointsKey(account, token))
}

func (l *Ledger) TotalMinted() Amount {
	return l.Balance(counterKey(BalanceMinted))
}

func (l *Ledger) TotalBurned() Amount {
	return l.Balance(counterKey(BalanceBurned))
}

// RemainingDistribution is how many reward tokens can still be minted.
func (l *Ledger) RemainingDistribution() Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	cfg, _ := l.st.currentConfig()
	minted := l.st.balance(counterKey(BalanceMinted))
	rest, err := subAmounts(cfg.MaxDistribution, minted)
	if err != nil {
		return Amount{}
	}
	return rest
}

// TokenBalance pairs a token with an amount.
type TokenBalance struct {
	Token  TokenID
	Amount Amount
}

// Deposits lists the account's balance of every whitelisted token.
func (l *Ledger) Deposits(account string) []TokenBalance {
	var out []TokenBalance
	l.view(func(p Policy) {
		for token := range p.tokens {
			out = append(out, TokenBalance{Token: token, Amount: l.st.balance(depositKey(account, token))})
		}
	})
	sortTokenBalances(out)
	return out
}

func sortTokenBalances(b []TokenBalance) {
	sort.Slice(b, func(i, j int) bool { return b[i].Token.String() < b[j].Token.String() })
}

// WhitelistedTokens returns a copy of the whitelist.
func (l *Ledger) WhitelistedTokens() map[TokenID]WhitelistedToken {
	out := make(map[TokenID]WhitelistedToken)
	l.view(func(p Policy) {
		for k, v := range p.tokens {
			out[k] = v
		}
	})
	return out
}

func (l *Ledger) ChatSettings(chat int64) (ChatSettings, bool) {
	var (
		s  ChatSettings
		ok bool
	)
	l.view(func(p Policy) { s, ok = p.Chat(chat) })
	return s, ok
}

func (l *Ledger) ChatPoints(chat int64) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	points, _ := l.st.chatPoints.get(chat)
	return points
}

// OwnerOf returns the NEAR account a service account is linked to.
func (l *Ledger) OwnerOf(svc ServiceAccount) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.links.get(svc)
}

// ServiceAccountsOf lists the service accounts linked to a NEAR account.
func (l *Ledger) ServiceAccountsOf(account string) []ServiceAccount {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ServiceAccount
	for _, svc := range []Service{ServiceTelegram, ServiceTwitter, ServiceDiscord, ServiceGitHub} {
		if acc, ok := l.st.linkIndex.get(linkIndexKey{Account: account, Service: svc}); ok {
			out = append(out, acc)
		}
	}
	return out
}

func (l *Ledger) RequestByID(id string) (Request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.requests.get(id)
}

// PendingRequests returns pending requests, oldest first.
func (l *Ledger) PendingRequests() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Request
	for _, r := range l.st.requests.rows {
		if r.Pending() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
