package main

import (
	"fmt"
	"log"
	"strings"

	"tip-ledger/internal/config"
	"tip-ledger/internal/db"
	"tip-ledger/internal/models"
)

func main() {
	fmt.Println("🔍 Verifying database connection and ledger tables...")
	fmt.Println(strings.Repeat("=", 60))

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gdb, err := db.Open(config.AppConfig.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Ping failed: %v", err)
	}
	fmt.Printf("📋 Connected (%s)\n", config.AppConfig.Database.Driver)

	tables := []struct {
		name  string
		model interface{}
	}{
		{"ledger_configs", &models.LedgerConfig{}},
		{"whitelisted_tokens", &models.WhitelistedToken{}},
		{"chat_settings", &models.ChatSetting{}},
		{"chat_points", &models.ChatPoint{}},
		{"ledger_balances", &models.LedgerBalance{}},
		{"service_links", &models.ServiceLink{}},
		{"chat_reward_flags", &models.ChatRewardFlag{}},
		{"settlement_requests", &models.SettlementRequest{}},
		{"settlement_deliveries", &models.SettlementDelivery{}},
	}

	missing := 0
	for _, t := range tables {
		if !gdb.Migrator().HasTable(t.model) {
			fmt.Printf("❌ %-24s missing\n", t.name)
			missing++
			continue
		}
		var count int64
		if err := gdb.Model(t.model).Count(&count).Error; err != nil {
			fmt.Printf("❌ %-24s count failed: %v\n", t.name, err)
			missing++
			continue
		}
		fmt.Printf("✅ %-24s %d rows\n", t.name, count)
	}

	fmt.Println(strings.Repeat("=", 60))
	if missing > 0 {
		fmt.Printf("❌ %d table(s) need attention, run `tipledger migrate`\n", missing)
		return
	}
	fmt.Println("✅ Database verification passed")
}
