package dto

import (
	"fmt"

	"tip-ledger/internal/ledger"
)

// ==================== Ledger request DTOs ====================
// Amounts travel as base-10 strings.

// ServiceAccountDTO external identity: numeric id for telegram, handle otherwise
type ServiceAccountDTO struct {
	Service string `json:"service" binding:"required"`
	Value   string `json:"value" binding:"required"`
}

func (s ServiceAccountDTO) ToLedger() (ledger.ServiceAccount, error) {
	return ledger.ParseServiceAccount(s.Service, s.Value)
}

type DepositRequest struct {
	Account string `json:"account" binding:"required"`
	Token   string `json:"token" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type TipRequest struct {
	ReceiverAccount string             `json:"receiver_account"`
	ReceiverService *ServiceAccountDTO `json:"receiver_service"`
	Token           string             `json:"token" binding:"required"`
	Amount          string             `json:"amount" binding:"required"`
	ChatID          int64              `json:"chat_id"`
}

// ToLedger builds the ledger tip for sender.
func (r TipRequest) ToLedger(sender string) (ledger.TipRequest, error) {
	token, err := ledger.ParseTokenParam(r.Token)
	if err != nil {
		return ledger.TipRequest{}, err
	}
	amount, err := ledger.ParseAmount(r.Amount)
	if err != nil {
		return ledger.TipRequest{}, err
	}
	req := ledger.TipRequest{
		Sender:          sender,
		ReceiverAccount: r.ReceiverAccount,
		Token:           token,
		Amount:          amount,
		ChatID:          r.ChatID,
	}
	if r.ReceiverService != nil {
		svc, err := r.ReceiverService.ToLedger()
		if err != nil {
			return ledger.TipRequest{}, err
		}
		req.ReceiverService = &svc
	}
	return req, nil
}

// TokenAmountRequest token plus an optional amount; an empty amount means "all"
type TokenAmountRequest struct {
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount"`
}

func (r TokenAmountRequest) Parse() (ledger.TokenID, *ledger.Amount, error) {
	token, err := ledger.ParseTokenParam(r.Token)
	if err != nil {
		return ledger.TokenID{}, nil, err
	}
	amount, err := OptionalAmount(r.Amount)
	return token, amount, err
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type UnwrapRequest struct {
	Amount string `json:"amount"`
}

type ChatRewardRequest struct {
	ChatID int64  `json:"chat_id" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

type RedeemRequest struct {
	Tokens []string `json:"tokens" binding:"required,min=1"`
}

type LinkRequest struct {
	Account string            `json:"account" binding:"required"`
	Service ServiceAccountDTO `json:"service" binding:"required"`
}

type ServiceTokenRequest struct {
	Service ServiceAccountDTO `json:"service" binding:"required"`
	Token   string            `json:"token" binding:"required"`
}

// OnTransferRequest fungible-token transfer notification; Msg names the beneficiary
type OnTransferRequest struct {
	Contract string `json:"contract" binding:"required"`
	Sender   string `json:"sender" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Msg      string `json:"msg"`
}

type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// ConfigDTO 全局配置（读写共用）
type ConfigDTO struct {
	Owner               string             `json:"owner" binding:"required"`
	Operator            string             `json:"operator" binding:"required"`
	TreasuryFee         ledger.FeeFraction `json:"treasury_fee"`
	ServiceFee          ledger.FeeFraction `json:"service_fee"`
	TipAvailable        bool               `json:"tip_available"`
	WithdrawAvailable   bool               `json:"withdraw_available"`
	RewardToken         string             `json:"reward_token" binding:"required"`
	WrappedNative       string             `json:"wrapped_native" binding:"required"`
	ChatRewardThreshold string             `json:"chat_reward_threshold" binding:"required"`
	MaxDistribution     string             `json:"max_distribution" binding:"required"`
}

func ConfigFromLedger(c ledger.Config) ConfigDTO {
	return ConfigDTO{
		Owner:               c.Owner,
		Operator:            c.Operator,
		TreasuryFee:         c.TreasuryFee,
		ServiceFee:          c.ServiceFee,
		TipAvailable:        c.TipAvailable,
		WithdrawAvailable:   c.WithdrawAvailable,
		RewardToken:         c.RewardToken.String(),
		WrappedNative:       c.WrappedNative.String(),
		ChatRewardThreshold: c.ChatRewardThreshold.Dec(),
		MaxDistribution:     c.MaxDistribution.Dec(),
	}
}

func (c ConfigDTO) ToLedger() (ledger.Config, error) {
	cfg := ledger.Config{
		Owner:             c.Owner,
		Operator:          c.Operator,
		TreasuryFee:       c.TreasuryFee,
		ServiceFee:        c.ServiceFee,
		TipAvailable:      c.TipAvailable,
		WithdrawAvailable: c.WithdrawAvailable,
	}
	var err error
	if cfg.RewardToken, err = ledger.ParseTokenParam(c.RewardToken); err != nil {
		return ledger.Config{}, err
	}
	if cfg.WrappedNative, err = ledger.ParseTokenParam(c.WrappedNative); err != nil {
		return ledger.Config{}, err
	}
	if cfg.ChatRewardThreshold, err = ledger.ParseAmount(c.ChatRewardThreshold); err != nil {
		return ledger.Config{}, err
	}
	if cfg.MaxDistribution, err = ledger.ParseAmount(c.MaxDistribution); err != nil {
		return ledger.Config{}, err
	}
	return cfg, nil
}

// TokenParamsDTO 白名单代币参数
type TokenParamsDTO struct {
	TipsAvailable      bool              `json:"tips_available"`
	MinDeposit         string            `json:"min_deposit"`
	MinTip             string            `json:"min_tip"`
	WithdrawCommission string            `json:"withdraw_commission"`
	Swap               *ledger.SwapRoute `json:"swap,omitempty"`
}

func TokenParamsFromLedger(w ledger.WhitelistedToken) TokenParamsDTO {
	return TokenParamsDTO{
		TipsAvailable:      w.TipsAvailable,
		MinDeposit:         w.MinDeposit.Dec(),
		MinTip:             w.MinTip.Dec(),
		WithdrawCommission: w.WithdrawCommission.Dec(),
		Swap:               w.Swap,
	}
}

func (t TokenParamsDTO) ToLedger() (ledger.WhitelistedToken, error) {
	w := ledger.WhitelistedToken{TipsAvailable: t.TipsAvailable, Swap: t.Swap}
	for _, f := range []struct {
		name string
		raw  string
		dst  *ledger.Amount
	}{
		{"min_deposit", t.MinDeposit, &w.MinDeposit},
		{"min_tip", t.MinTip, &w.MinTip},
		{"withdraw_commission", t.WithdrawCommission, &w.WithdrawCommission},
	} {
		v, err := OptionalAmount(f.raw)
		if err != nil {
			return ledger.WhitelistedToken{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if v != nil {
			*f.dst = *v
		}
	}
	return w, nil
}

type WhitelistTokenRequest struct {
	Token  string         `json:"token" binding:"required"`
	Params TokenParamsDTO `json:"params"`
}

type ChatSettingsDTO struct {
	Admin       string `json:"admin" binding:"required"`
	FeePercent  uint32 `json:"fee_percent"`
	TrackPoints bool   `json:"track_points"`
}

func ChatSettingsFromLedger(s ledger.ChatSettings) ChatSettingsDTO {
	return ChatSettingsDTO{Admin: s.Admin, FeePercent: s.FeePercent, TrackPoints: s.TrackPoints}
}

func (s ChatSettingsDTO) ToLedger() ledger.ChatSettings {
	return ledger.ChatSettings{Admin: s.Admin, FeePercent: s.FeePercent, TrackPoints: s.TrackPoints}
}

// OptionalAmount parses s, returning nil for an empty string.
func OptionalAmount(s string) (*ledger.Amount, error) {
	if s == "" {
		return nil, nil
	}
	v, err := ledger.ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
