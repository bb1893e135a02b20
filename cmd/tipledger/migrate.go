package main

import (
	"fmt"
	"log"

	"tip-ledger/internal/db"

	"github.com/urfave/cli/v2"
)

var MigrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "creates or updates the ledger schema and runs pending data migrations",
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		gdb, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		log.Println("✅ Database schema migrated successfully")
		return nil
	},
}
