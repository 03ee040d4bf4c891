package database

import (
	"fmt"

	"eve-trade-ledger/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all ledger tables. The order
// ledger, lots and profit records are scoped by trader_id rather than the
// per-character tables the old tool generated.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Trader{},
		&models.TradeOrder{},
		&models.InventoryLot{},
		&models.ProfitRecord{},
		&models.ItemType{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
