package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tip-ledger/internal/clients"
	"tip-ledger/internal/config"
	"tip-ledger/internal/events"
	"tip-ledger/internal/handlers"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/repository"
	"tip-ledger/internal/services"

	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

// ServiceContainer wires the ledger and everything around it.
type ServiceContainer struct {
	Config *config.Config

	// Database
	DB *gorm.DB

	// Repositories
	LedgerRepo   repository.LedgerRepository
	DeliveryRepo repository.SettlementDeliveryRepository

	// Core
	Ledger     *ledger.Ledger
	Dispatcher *services.SettlementDispatcher

	// Clients (optional)
	NATSClient     *clients.NATSClient
	NEARClient     *clients.NEARClient
	TelegramClient *clients.TelegramClient

	// Settlement & events
	AuthResolver      *services.AuthResolverService
	OutcomeConsumer   *events.OutcomeConsumer
	RedeliveryService *services.SettlementRedeliveryService
	EventBridge       *events.Bridge

	// Push & monitoring
	WebSocketPushService *services.WebSocketPushService
	TipNotifier          *services.TipNotifier
	MonitoringService    *services.MonitoringService

	TokenIssuer *handlers.TokenIssuer

	subscriptions []*nats.Subscription
}

// NewServiceContainer builds every service on top of an open database.
// Nothing runs until Start.
func NewServiceContainer(ctx context.Context, cfg *config.Config, gdb *gorm.DB) (*ServiceContainer, error) {
	log.Println("🚀 Initializing Service Container...")
	c := &ServiceContainer{Config: cfg, DB: gdb}

	// 1. Repositories
	c.LedgerRepo = repository.NewLedgerRepository(gdb)
	c.DeliveryRepo = repository.NewSettlementDeliveryRepository(gdb)
	log.Println("✅ Repositories initialized")

	// 2. Optional clients
	c.initClients()

	// 3. Ledger core
	if err := c.initLedger(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	// 4. Settlement, events, push
	if err := c.initSettlement(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize settlement: %w", err)
	}
	c.initEventServices()

	issuer, err := handlers.NewTokenIssuer(cfg.Auth)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.TokenIssuer = issuer

	log.Println("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initClients() {
	if c.Config.NATS.URL != "" {
		client, err := clients.NewNATSClient(c.Config.NATS, c.Config.Settlement.SubjectPrefix)
		if err != nil {
			// 请求会留在 pending，由重投服务在恢复后补发
			log.Printf("⚠️ NATS unavailable, settlement requests stay pending: %v", err)
		} else {
			c.NATSClient = client
			log.Printf("✅ NATS connected (%s)", c.Config.NATS.URL)
		}
	} else {
		log.Println("ℹ️ nats.url not set, settlement bus disabled")
	}

	if c.Config.NEAR.ResolverEnabled {
		c.NEARClient = clients.NewNEARClient(c.Config.NEAR)
		log.Printf("✅ NEAR auth resolver enabled (contract %s)", c.Config.NEAR.AuthContract)
	}

	if c.Config.Telegram.Enabled {
		tg, err := clients.NewTelegramClient(c.Config.Telegram.BotToken)
		if err != nil {
			log.Printf("⚠️ Telegram client disabled: %v", err)
		} else {
			c.TelegramClient = tg
			log.Println("✅ Telegram notifier enabled")
		}
	}
}

func (c *ServiceContainer) initLedger(ctx context.Context) error {
	var publisher services.RequestPublisher
	if c.NATSClient != nil {
		publisher = c.NATSClient
	}
	c.Dispatcher = services.NewSettlementDispatcher(publisher, c.DeliveryRepo, c.Config.Settlement)

	initial, err := c.Config.Ledger.ToLedger()
	if err != nil {
		return err
	}
	c.Ledger, err = ledger.New(ctx, c.LedgerRepo, c.Dispatcher, initial)
	if err != nil {
		return err
	}
	log.Printf("✅ Ledger loaded (owner=%s operator=%s)", c.Ledger.Config().Owner, c.Ledger.Config().Operator)

	return c.bootstrapTokens(ctx)
}

// bootstrapTokens whitelists configured tokens that are not known yet.
// Existing parameters are never overwritten; use the admin API for that.
func (c *ServiceContainer) bootstrapTokens(ctx context.Context) error {
	known := c.Ledger.WhitelistedTokens()
	owner := c.Ledger.Config().Owner
	for _, tc := range c.Config.Ledger.Tokens {
		token, params, err := tc.ToLedger()
		if err != nil {
			return fmt.Errorf("ledger.tokens %q: %w", tc.Token, err)
		}
		if _, ok := known[token]; ok {
			continue
		}
		if err := c.Ledger.WhitelistToken(ctx, owner, token, params); err != nil {
			return fmt.Errorf("whitelist %s: %w", token, err)
		}
		log.Printf("✅ Token %s whitelisted from config", token)
	}
	return nil
}

func (c *ServiceContainer) initSettlement() error {
	if c.NEARClient != nil {
		timeout := time.Duration(c.Config.NEAR.Timeout) * time.Second
		c.AuthResolver = services.NewAuthResolverService(c.NEARClient, c.Ledger, timeout)
		if c.NATSClient != nil {
			subs, err := c.AuthResolver.Subscribe(c.NATSClient)
			if err != nil {
				return fmt.Errorf("subscribe auth resolver: %w", err)
			}
			c.subscriptions = append(c.subscriptions, subs...)
			log.Println("✅ Auth resolver consuming settlement bus")
		} else {
			c.Dispatcher.RegisterLocal(ledger.KindAuthResolve, c.AuthResolver)
			c.Dispatcher.RegisterLocal(ledger.KindAuthContacts, c.AuthResolver)
			log.Println("✅ Auth resolver running in-process")
		}
	}

	if c.NATSClient != nil {
		c.OutcomeConsumer = events.NewOutcomeConsumer(c.Ledger)
		sub, err := c.OutcomeConsumer.Subscribe(c.NATSClient)
		if err != nil {
			return fmt.Errorf("subscribe outcomes: %w", err)
		}
		c.subscriptions = append(c.subscriptions, sub)
	}

	c.RedeliveryService = services.NewSettlementRedeliveryService(c.Ledger, c.Dispatcher, c.DeliveryRepo, c.Config.Settlement)
	return nil
}

func (c *ServiceContainer) initEventServices() {
	c.WebSocketPushService = services.NewWebSocketPushService()
	c.EventBridge = events.NewBridge(c.Ledger, c.WebSocketPushService)
	if c.NATSClient != nil {
		c.EventBridge.AddSink(events.NewNATSEventSink(c.NATSClient))
	}
	if c.TelegramClient != nil {
		c.TipNotifier = services.NewTipNotifier(c.TelegramClient, c.Ledger)
		c.EventBridge.AddSink(c.TipNotifier)
	}
	c.MonitoringService = services.NewMonitoringService(c.DB, c.LedgerRepo)
}

// Start launches background loops. The returned function runs the event
// bridge and blocks until ctx ends.
func (c *ServiceContainer) Start(ctx context.Context) func() error {
	c.MonitoringService.Start()
	c.RedeliveryService.Start(c.Config.Settlement.RedeliveryEvery())
	return func() error {
		err := c.EventBridge.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// BusStatus returns the bus for health checks, or nil when disabled.
func (c *ServiceContainer) BusStatus() handlers.BusStatus {
	if c.NATSClient == nil {
		return nil
	}
	return c.NATSClient
}

// Close stops background services and releases connections.
func (c *ServiceContainer) Close() {
	for _, sub := range c.subscriptions {
		_ = sub.Unsubscribe()
	}
	if c.RedeliveryService != nil {
		c.RedeliveryService.Stop()
	}
	if c.MonitoringService != nil {
		c.MonitoringService.Stop()
	}
	if c.WebSocketPushService != nil {
		c.WebSocketPushService.Stop()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Println("✅ Service Container closed")
}
