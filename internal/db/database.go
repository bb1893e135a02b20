package db

import (
	"fmt"
	"log"

	"tip-ledger/internal/config"
	"tip-ledger/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the configured database and migrates the schema.
func InitDB() {
	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	var err error
	DB, err = Open(config.AppConfig.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("✅ Database connected successfully")

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
	log.Println("✅ Database schema migrated successfully")
}

// Open connects to the configured driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		log.Printf("Connecting to database: postgres")
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		log.Printf("Connecting to database: sqlite %s", cfg.DSN)
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Migrate creates or updates every ledger table and runs data migrations.
func Migrate(gdb *gorm.DB) error {
	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")
	if err := gdb.AutoMigrate(
		&models.LedgerConfig{},
		&models.WhitelistedToken{},
		&models.ChatSetting{},
		&models.ChatPoint{},
		&models.LedgerBalance{},
		&models.ServiceLink{},
		&models.ChatRewardFlag{},
		&models.SettlementRequest{},
		&models.SettlementDelivery{},
	); err != nil {
		return err
	}
	return RunDataMigrations(gdb)
}
