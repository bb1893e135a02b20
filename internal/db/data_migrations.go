package db

import (
	"fmt"
	"log"
	"time"

	"tip-ledger/internal/models"

	"gorm.io/gorm"
)

// DataMigration represents a data migration
type DataMigration struct {
	Version     string
	Description string
	Up          func(*gorm.DB) error
}

// SchemaMigrationLog records applied data migrations.
type SchemaMigrationLog struct {
	Version     string    `gorm:"primaryKey;size:50"`
	Description string    `gorm:"type:text"`
	ExecutedAt  time.Time `gorm:"autoCreateTime"`
}

func (SchemaMigrationLog) TableName() string {
	return "schema_migrations_log"
}

// GetDataMigrations return all data migrations
func GetDataMigrations() []DataMigration {
	return []DataMigration{
		{
			Version:     "data_002",
			Description: "Backfill settled_at for finished settlement requests",
			Up:          backfillSettledAt,
		},
	}
}

func backfillSettledAt(db *gorm.DB) error {
	result := db.Model(&models.SettlementRequest{}).
		Where("status <> ? AND settled_at IS NULL", models.SettlementRequestStatusPending).
		Update("settled_at", gorm.Expr("updated_at"))
	if result.Error != nil {
		return result.Error
	}
	log.Printf("✅ Backfilled settled_at on %d settlement requests", result.RowsAffected)
	return nil
}

// RunDataMigrations applies every data migration not yet recorded.
func RunDataMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigrationLog{}); err != nil {
		return fmt.Errorf("create schema_migrations_log: %w", err)
	}

	for _, migration := range GetDataMigrations() {
		var count int64
		if err := db.Model(&SchemaMigrationLog{}).Where("version = ?", migration.Version).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			log.Printf("📋 Data migration %s already applied", migration.Version)
			continue
		}

		log.Printf("🚀 Running data migration: %s", migration.Description)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigrationLog{Version: migration.Version, Description: migration.Description}).Error
		})
		if err != nil {
			return fmt.Errorf("data migration %s: %w", migration.Version, err)
		}
		log.Printf("✅ Data migration %s completed", migration.Version)
	}
	return nil
}
