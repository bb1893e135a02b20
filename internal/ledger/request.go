package ledger

import "time"

// RequestKind is the external call a settlement request asks a relayer to perform.
type RequestKind string

const (
	KindFTTransfer     RequestKind = "ft_transfer"
	KindNativeTransfer RequestKind = "native_transfer"
	KindSwap           RequestKind = "swap"
	KindAMMWithdraw    RequestKind = "amm_withdraw"
	KindWrap           RequestKind = "wrap"
	KindUnwrap         RequestKind = "unwrap"
	KindAuthResolve    RequestKind = "auth_resolve"
	KindAuthContacts   RequestKind = "auth_contacts"
	KindRewardTransfer RequestKind = "reward_transfer"
)

// Operation names the continuation that handles the outcome of a request.
type Operation string

const (
	OpWithdraw        Operation = "withdraw"
	OpNativePayout    Operation = "native_payout"
	OpAuthWithdraw    Operation = "withdraw_with_auth"
	OpTipResolve      Operation = "tip_with_auth"
	OpWithdrawResolve Operation = "resolve_withdraw"
	OpClaimContacts   Operation = "claim_contact_tips"
	OpClaimWrap       Operation = "claim_wrap"
	OpClaimSwap       Operation = "claim_swap"
	OpClaimCustody    Operation = "claim_amm_withdraw"
	OpRewardMint      Operation = "reward_mint"
	OpUnwrapTreasury  Operation = "unwrap_treasury"
)

// RequestStatus 结算请求状态
type RequestStatus string

const (
	StatusPending     RequestStatus = "pending"
	StatusSettled     RequestStatus = "settled"
	StatusCompensated RequestStatus = "compensated"
	StatusFailed      RequestStatus = "failed"
)

// Request is an outbound external call together with the context its
// continuation needs. It is persisted with the ledger write that issued it.
type Request struct {
	ID        string
	Kind      RequestKind
	Operation Operation
	Account   string
	Receiver  string
	Token     TokenID
	Amount    Amount
	Fee       Amount
	Origin    TokenID
	Service   *ServiceAccount
	ChatID    int64
	Route     *SwapRoute
	Status    RequestStatus
	Failure   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Request) Pending() bool {
	return r.Status == StatusPending
}

// Outcome is what a relayer reports back for a request.
type Outcome struct {
	Success  bool
	Output   Amount
	Owner    string
	Contacts []ServiceAccount
	Error    string
}
