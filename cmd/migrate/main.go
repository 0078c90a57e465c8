package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"predictsol/internal/config"
	"predictsol/internal/database"
	"predictsol/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Fail fast with the driver's own error before gorm gets involved
	if err := ping(cfg.GetDSN()); err != nil {
		zl.Fatal("database is not reachable", zap.Error(err))
	}

	if err := database.Connect(cfg.GetDSN(), zl); err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.AutoMigrate(zl); err != nil {
		zl.Fatal("failed to apply migrations", zap.Error(err))
	}

	zl.Info("migrations applied", zap.String("database", cfg.Database.DBName))
}

func ping(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
