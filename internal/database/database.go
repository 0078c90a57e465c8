package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"predictsol/internal/models"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, log *zap.Logger) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")
	return nil
}

// OpenSQLite opens a SQLite database; tests use in-memory DSNs. A single
// connection keeps every statement of a transaction on the same handle.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Model groups, migrated in order.
var (
	settlementModels = []interface{}{
		&models.EventCounter{},
		&models.Event{},
		&models.SettlementTransaction{},
	}

	custodyModels = []interface{}{
		&models.NativeAccount{},
		&models.TokenMint{},
		&models.TokenBalance{},
		&models.WalletDeposit{},
	}

	oracleModels = []interface{}{
		&models.TruthQuestion{},
	}
)

// Migrate creates or updates every table on db
func Migrate(db *gorm.DB) error {
	for _, group := range [][]interface{}{settlementModels, custodyModels, oracleModels} {
		for _, model := range group {
			if err := db.AutoMigrate(model); err != nil {
				return fmt.Errorf("migration failed for %T: %w", model, err)
			}
		}
	}
	return nil
}

// AutoMigrate runs automatic migrations for all models on the global connection
func AutoMigrate(log *zap.Logger) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Info("database migrations completed")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
