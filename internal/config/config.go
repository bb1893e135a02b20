package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tip-ledger/internal/ledger"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Settlement SettlementConfig `yaml:"settlement"`
	Auth       AuthConfig       `yaml:"auth"`
	Admin      AdminConfig      `yaml:"admin"` // Admin API access control configuration
	CORS       CORSConfig       `yaml:"cors"`
	NEAR       NEARConfig       `yaml:"near"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	TrustedProxies []string `yaml:"trusted_proxies"` // empty: ClientIP is the socket address
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"` // postgres | sqlite
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`        // seconds
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
	MaxReconnects int    `yaml:"max_reconnects"`
}

// LedgerConfig 账本初始配置。仅在数据库中还没有配置时写入。
type LedgerConfig struct {
	Owner               string             `yaml:"owner"`
	Operator            string             `yaml:"operator"`
	TreasuryFee         ledger.FeeFraction `yaml:"treasury_fee"`
	ServiceFee          ledger.FeeFraction `yaml:"service_fee"`
	TipAvailable        bool               `yaml:"tip_available"`
	WithdrawAvailable   bool               `yaml:"withdraw_available"`
	RewardToken         string             `yaml:"reward_token"`
	WrappedNative       string             `yaml:"wrapped_native"`
	ChatRewardThreshold string             `yaml:"chat_reward_threshold"`
	MaxDistribution     string             `yaml:"max_distribution"`
	Tokens              []TokenConfig      `yaml:"tokens"` // whitelist bootstrap
}

// TokenConfig 启动时加入白名单的代币
type TokenConfig struct {
	Token              string   `yaml:"token"`
	TipsAvailable      bool     `yaml:"tips_available"`
	MinDeposit         string   `yaml:"min_deposit"`
	MinTip             string   `yaml:"min_tip"`
	WithdrawCommission string   `yaml:"withdraw_commission"`
	SwapContract       string   `yaml:"swap_contract"`
	SwapPoolIDs        []uint64 `yaml:"swap_pool_ids"`
}

// SettlementConfig controls the settlement bus and redelivery loop.
type SettlementConfig struct {
	SubjectPrefix      string `yaml:"subject_prefix"`
	RedeliveryInterval int    `yaml:"redelivery_interval"` // seconds
	StaleAfter         int    `yaml:"stale_after"`         // seconds a request may stay pending before redelivery
	RetryBase          int    `yaml:"retry_base"`          // seconds
	RetryMax           int    `yaml:"retry_max"`           // seconds
	BatchSize          int    `yaml:"batch_size"`
}

// AuthConfig JWT and owner login
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	TokenTTL          int    `yaml:"token_ttl"` // hours
	AllowDevTokens    bool   `yaml:"allow_dev_tokens"`
	OwnerUsername     string `yaml:"owner_username"`
	OwnerPasswordHash string `yaml:"owner_password_hash"` // bcrypt
	TOTPSecret        string `yaml:"totp_secret"`
}

// AdminConfig Admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // List of allowed IP addresses or CIDR ranges
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"` // seconds
}

// NEARConfig NEAR RPC，供授权合约解析使用
type NEARConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	AuthContract    string `yaml:"auth_contract"`
	Timeout         int    `yaml:"timeout"` // seconds
	ResolverEnabled bool   `yaml:"resolver_enabled"`
}

// TelegramConfig tip notifications
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

// LoggingConfig logrus level and format
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("✅ [%s] Loading configuration from config file: %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	overrideFromEnv(cfg)

	if len(cfg.Admin.AllowedIPs) > 0 {
		fmt.Printf("📋 [Config] Admin IP whitelist loaded: %d IPs/CIDRs configured\n", len(cfg.Admin.AllowedIPs))
	} else {
		fmt.Printf("📋 [Config] Admin IP whitelist: not configured (localhost-only mode)\n")
	}
	fmt.Printf("📋 [Config] Ledger owner=%s operator=%s, %d bootstrap tokens\n", cfg.Ledger.Owner, cfg.Ledger.Operator, len(cfg.Ledger.Tokens))

	AppConfig = cfg
	return nil
}

// Parse decodes YAML and fills defaults. It does not read the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.NATS.Timeout == 0 {
		c.NATS.Timeout = 10
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 60
	}
	if c.Settlement.SubjectPrefix == "" {
		c.Settlement.SubjectPrefix = "tipledger"
	}
	if c.Settlement.RedeliveryInterval == 0 {
		c.Settlement.RedeliveryInterval = 30
	}
	if c.Settlement.StaleAfter == 0 {
		c.Settlement.StaleAfter = 60
	}
	if c.Settlement.RetryBase == 0 {
		c.Settlement.RetryBase = 10
	}
	if c.Settlement.RetryMax == 0 {
		c.Settlement.RetryMax = 600
	}
	if c.Settlement.BatchSize == 0 {
		c.Settlement.BatchSize = 100
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24
	}
	if c.Auth.OwnerUsername == "" {
		c.Auth.OwnerUsername = "owner"
	}
	if c.NEAR.Timeout == 0 {
		c.NEAR.Timeout = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// overrideFromEnv Override configuration
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}

	// server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// NATS
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	// Ledger principals
	if owner := os.Getenv("LEDGER_OWNER"); owner != "" {
		config.Ledger.Owner = owner
	}
	if operator := os.Getenv("LEDGER_OPERATOR"); operator != "" {
		config.Ledger.Operator = operator
	}

	// Auth
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if hash := os.Getenv("OWNER_PASSWORD_HASH"); hash != "" {
		config.Auth.OwnerPasswordHash = hash
	}
	if totpSecret := os.Getenv("OWNER_TOTP_SECRET"); totpSecret != "" {
		config.Auth.TOTPSecret = totpSecret
	}
	if dev := os.Getenv("ALLOW_DEV_TOKENS"); dev != "" {
		config.Auth.AllowDevTokens = dev == "true"
	}

	// NEAR
	if rpcURL := os.Getenv("NEAR_RPC_URL"); rpcURL != "" {
		config.NEAR.RPCURL = rpcURL
	}
	if authContract := os.Getenv("NEAR_AUTH_CONTRACT"); authContract != "" {
		config.NEAR.AuthContract = authContract
	}

	// Telegram
	if botToken := os.Getenv("TELEGRAM_BOT_TOKEN"); botToken != "" {
		config.Telegram.BotToken = botToken
		config.Telegram.Enabled = true
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// CORS Configuration
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// ToLedger converts the bootstrap section into a ledger config.
func (c LedgerConfig) ToLedger() (ledger.Config, error) {
	cfg := ledger.Config{
		Owner:               c.Owner,
		Operator:            c.Operator,
		TreasuryFee:         c.TreasuryFee,
		ServiceFee:          c.ServiceFee,
		TipAvailable:        c.TipAvailable,
		WithdrawAvailable:   c.WithdrawAvailable,
		ChatRewardThreshold: ledger.DefaultChatRewardThreshold,
		MaxDistribution:     ledger.DefaultMaxDistribution,
	}
	var err error
	if cfg.RewardToken, err = ledger.ParseTokenParam(c.RewardToken); err != nil {
		return ledger.Config{}, fmt.Errorf("ledger.reward_token: %w", err)
	}
	if cfg.WrappedNative, err = ledger.ParseTokenParam(c.WrappedNative); err != nil {
		return ledger.Config{}, fmt.Errorf("ledger.wrapped_native: %w", err)
	}
	if c.ChatRewardThreshold != "" {
		if cfg.ChatRewardThreshold, err = ledger.ParseAmount(c.ChatRewardThreshold); err != nil {
			return ledger.Config{}, fmt.Errorf("ledger.chat_reward_threshold: %w", err)
		}
	}
	if c.MaxDistribution != "" {
		if cfg.MaxDistribution, err = ledger.ParseAmount(c.MaxDistribution); err != nil {
			return ledger.Config{}, fmt.Errorf("ledger.max_distribution: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

// ToLedger converts one bootstrap token entry.
func (t TokenConfig) ToLedger() (ledger.TokenID, ledger.WhitelistedToken, error) {
	id, err := ledger.ParseTokenParam(t.Token)
	if err != nil {
		return ledger.TokenID{}, ledger.WhitelistedToken{}, err
	}
	params := ledger.WhitelistedToken{TipsAvailable: t.TipsAvailable}
	for _, f := range []struct {
		raw string
		dst *ledger.Amount
	}{
		{t.MinDeposit, &params.MinDeposit},
		{t.MinTip, &params.MinTip},
		{t.WithdrawCommission, &params.WithdrawCommission},
	} {
		if f.raw == "" {
			continue
		}
		v, err := ledger.ParseAmount(f.raw)
		if err != nil {
			return ledger.TokenID{}, ledger.WhitelistedToken{}, fmt.Errorf("token %s: %w", t.Token, err)
		}
		*f.dst = v
	}
	if t.SwapContract != "" {
		params.Swap = &ledger.SwapRoute{Contract: t.SwapContract, PoolIDs: t.SwapPoolIDs}
	}
	return id, params, params.Validate()
}

// RedeliveryEvery 重投递间隔
func (s SettlementConfig) RedeliveryEvery() time.Duration {
	return time.Duration(s.RedeliveryInterval) * time.Second
}

func (s SettlementConfig) StaleAfterDuration() time.Duration {
	return time.Duration(s.StaleAfter) * time.Second
}

// Backoff returns the base and ceiling of the redelivery backoff.
func (s SettlementConfig) Backoff() (time.Duration, time.Duration) {
	return time.Duration(s.RetryBase) * time.Second, time.Duration(s.RetryMax) * time.Second
}
