package models

import (
	"time"
)

// LedgerConfigKey 配置表只有一行
const LedgerConfigKey = "config"

// LedgerConfig 账本全局配置
type LedgerConfig struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:16"`
	Owner                string    `json:"owner" gorm:"not null"`
	Operator             string    `json:"operator" gorm:"not null"`
	TreasuryFeeNumerator uint32    `json:"treasury_fee_numerator"`
	TreasuryFeeDenom     uint32    `json:"treasury_fee_denominator"`
	ServiceFeeNumerator  uint32    `json:"service_fee_numerator"`
	ServiceFeeDenom      uint32    `json:"service_fee_denominator"`
	TipAvailable         bool      `json:"tip_available"`
	WithdrawAvailable    bool      `json:"withdraw_available"`
	RewardToken          string    `json:"reward_token" gorm:"not null"`
	WrappedNative        string    `json:"wrapped_native" gorm:"not null"`
	ChatRewardThreshold  string    `json:"chat_reward_threshold" gorm:"type:varchar(40)"` // decimal string
	MaxDistribution      string    `json:"max_distribution" gorm:"type:varchar(40)"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (LedgerConfig) TableName() string {
	return "ledger_config"
}

// WhitelistedToken 白名单代币
type WhitelistedToken struct {
	Token              string    `json:"token" gorm:"primaryKey;size:128"` // "native" or contract id
	TipsAvailable      bool      `json:"tips_available"`
	MinDeposit         string    `json:"min_deposit" gorm:"type:varchar(40)"`
	MinTip             string    `json:"min_tip" gorm:"type:varchar(40)"`
	WithdrawCommission string    `json:"withdraw_commission" gorm:"type:varchar(40)"`
	SwapContract       string    `json:"swap_contract"`
	SwapPoolIDs        PoolIDs   `json:"swap_pool_ids"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ChatSetting 社区设置
type ChatSetting struct {
	ChatID      int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	Admin       string    `json:"admin" gorm:"not null"`
	FeePercent  uint32    `json:"fee_percent"`
	TrackPoints bool      `json:"track_points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChatPoint counts reward points credited per chat.
type ChatPoint struct {
	ChatID    int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	Points    uint32    `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerBalance 余额行。Kind 区分存款、待领取打赏、金库等。
// Principal 为空表示全局计数器或资金池。
type LedgerBalance struct {
	Kind      string    `json:"kind" gorm:"primaryKey;size:32"`
	Principal string    `json:"principal" gorm:"primaryKey;size:160"`
	Token     string    `json:"token" gorm:"primaryKey;size:128"`
	Amount    string    `json:"amount" gorm:"type:varchar(40);not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServiceLink binds an external identity to a ledger account.
type ServiceLink struct {
	ServiceKey string    `json:"service_key" gorm:"primaryKey;size:160"` // e.g. telegram:42
	Service    string    `json:"service" gorm:"not null;index"`
	Account    string    `json:"account" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatRewardFlag marks a sender whose first qualifying tip in a chat already earned a point.
type ChatRewardFlag struct {
	Account   string    `json:"account" gorm:"primaryKey;size:128"`
	ChatID    int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// SettlementRequestStatus 结算请求状态
type SettlementRequestStatus string

const (
	SettlementRequestStatusPending     SettlementRequestStatus = "pending"
	SettlementRequestStatusSettled     SettlementRequestStatus = "settled"
	SettlementRequestStatusCompensated SettlementRequestStatus = "compensated"
	SettlementRequestStatusFailed      SettlementRequestStatus = "failed"
)

// SettlementRequest 外部调用请求及其续接上下文
type SettlementRequest struct {
	ID         string                  `json:"id" gorm:"primaryKey;size:64"`
	Kind       string                  `json:"kind" gorm:"not null;size:32"`
	Operation  string                  `json:"operation" gorm:"not null;size:32"`
	Status     SettlementRequestStatus `json:"status" gorm:"not null;default:pending;index"`
	Account    string                  `json:"account" gorm:"index"`
	Receiver   string                  `json:"receiver"`
	Token      string                  `json:"token"`
	Amount     string                  `json:"amount" gorm:"type:varchar(40)"`
	Fee        string                  `json:"fee" gorm:"type:varchar(40)"`
	Origin     string                  `json:"origin"`
	ServiceKey string                  `json:"service_key"`
	ChatID     int64                   `json:"chat_id"`

	RouteContract string  `json:"route_contract"`
	RoutePoolIDs  PoolIDs `json:"route_pool_ids"`

	Failure   string     `json:"failure" gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt time.Time  `json:"updated_at"`
	SettledAt *time.Time `json:"settled_at"`
}
