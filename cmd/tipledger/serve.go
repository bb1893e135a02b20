package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tip-ledger/internal/app"
	"tip-ledger/internal/db"
	"tip-ledger/internal/handlers"
	"tip-ledger/internal/middleware"
	"tip-ledger/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var _FlagSkipMigrate = &cli.BoolFlag{
	Name:  "skip-migrate",
	Usage: "do not run schema migrations on startup",
}

var ServeCommand = &cli.Command{
	Name:  "serve",
	Usage: "runs the ledger HTTP API, settlement consumers and background services",
	Flags: []cli.Flag{
		_FlagSkipMigrate,
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		gdb, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		log.Println("✅ Database connected successfully")
		if !cctx.Bool("skip-migrate") {
			if err := db.Migrate(gdb); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Println("✅ Database schema migrated successfully")
		}

		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		container, err := app.NewServiceContainer(ctx, cfg, gdb)
		if err != nil {
			return err
		}
		defer container.Close()

		logger := logrus.StandardLogger()
		engine := router.SetupRouter(cfg, router.Handlers{
			Ledger:     handlers.NewLedgerHandler(container.Ledger),
			Auth:       handlers.NewAuthHandler(container.TokenIssuer, cfg.Auth),
			AdminAuth:  handlers.NewAdminAuthHandler(container.TokenIssuer, cfg.Auth, container.Ledger),
			WebSocket:  handlers.NewWebSocketHandler(container.WebSocketPushService),
			Health:     handlers.NewHealthHandler(gdb, container.BusStatus()),
			Retry:      handlers.NewRetryHandler(container.Ledger, container.Dispatcher, container.RedeliveryService),
			Statistics: handlers.NewStatisticsHandler(container.LedgerRepo),
			AuthMW:     middleware.NewAuthMiddleware(logger, container.TokenIssuer),
		}, logger)

		srv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(container.Start(gctx))
		g.Go(func() error {
			log.Printf("🚀 Tip ledger listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Println("🛑 Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}
