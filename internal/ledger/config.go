package ledger

import "fmt"

// 默认值
var (
	// DefaultMaxDistribution is 100M reward tokens with 24 decimals.
	DefaultMaxDistribution = MustAmount("100000000000000000000000000000000")
	// DefaultChatRewardThreshold is 0.1 native with 24 decimals.
	DefaultChatRewardThreshold = MustAmount("100000000000000000000000")
)

// MaxChatFeePercent bounds ChatSettings.FeePercent.
const MaxChatFeePercent = 10

// Config 账本全局配置，仅由 owner 整体替换
type Config struct {
	Owner               string
	Operator            string
	TreasuryFee         FeeFraction
	ServiceFee          FeeFraction
	TipAvailable        bool
	WithdrawAvailable   bool
	RewardToken         TokenID
	WrappedNative       TokenID
	ChatRewardThreshold Amount
	MaxDistribution     Amount
}

func (c Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidArgument)
	}
	if c.Operator == "" {
		return fmt.Errorf("%w: operator is required", ErrInvalidArgument)
	}
	if err := c.TreasuryFee.Validate(); err != nil {
		return fmt.Errorf("treasury fee: %w", err)
	}
	if err := c.ServiceFee.Validate(); err != nil {
		return fmt.Errorf("service fee: %w", err)
	}
	if c.RewardToken.IsNative() {
		return fmt.Errorf("%w: reward token must be a fungible token", ErrInvalidArgument)
	}
	if err := c.RewardToken.validate(); err != nil {
		return err
	}
	if err := c.WrappedNative.validate(); err != nil {
		return err
	}
	if c.MaxDistribution.IsZero() {
		return fmt.Errorf("%w: max distribution is zero", ErrInvalidArgument)
	}
	return nil
}

// SwapRoute describes how a token is converted into the reward token.
type SwapRoute struct {
	Contract string   `json:"contract"`
	PoolIDs  []uint64 `json:"pool_ids"`
}

// WhitelistedToken 单个代币的参数
type WhitelistedToken struct {
	TipsAvailable      bool
	MinDeposit         Amount
	MinTip             Amount
	WithdrawCommission Amount
	Swap               *SwapRoute
}

func (w WhitelistedToken) Validate() error {
	if w.Swap != nil && (w.Swap.Contract == "" || len(w.Swap.PoolIDs) == 0) {
		return fmt.Errorf("%w: swap route needs a contract and at least one pool", ErrInvalidArgument)
	}
	return nil
}

// ChatSettings 社区（群组）设置
type ChatSettings struct {
	Admin       string
	FeePercent  uint32
	TrackPoints bool
}

func (s ChatSettings) Validate() error {
	if s.Admin == "" {
		return fmt.Errorf("%w: chat admin is required", ErrInvalidArgument)
	}
	if s.FeePercent > MaxChatFeePercent {
		return fmt.Errorf("%w: chat fee %d%% exceeds %d%%", ErrInvalidArgument, s.FeePercent, MaxChatFeePercent)
	}
	return nil
}

func (s ChatSettings) fee() FeeFraction {
	return FeeFraction{Numerator: s.FeePercent, Denominator: 100}
}
