// Package cli provides the initialization shared by the accountbook commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"accountbook/internal/config"
	"accountbook/internal/log"
	"accountbook/internal/services"
	"accountbook/internal/storage"
)

// SetupLogger builds the process logger at level and installs it as the slog
// default. An unknown level falls back to info.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = log.ComponentCLI
	cfg.Output = os.Stderr
	if l, err := log.ParseLevel(level); err == nil {
		cfg.Level = l
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is not an
// error.
func LoadEnvFile(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it. A validation failure is logged before it is returned.
func LoadAndValidateConfig(logger *log.Logger) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fields := log.NewFields().
			WithOperation(log.OpStartup).
			WithError(err, log.ErrorTypeConfiguration)
		logger.Error("Configuration validation failed", fields.ToSlice()...)
		return nil, err
	}
	return cfg, nil
}

// InitService opens the ledger database described by cfg and wraps it in a
// LedgerService. The caller owns the returned service and must Close it.
func InitService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.LedgerService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	db := storage.NewDB(cfg.SQLiteDBPath,
		storage.WithLocation(loc),
		storage.WithBusyTimeout(cfg.BusyTimeout),
	)
	if _, err := db.Open(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to open ledger database",
			log.FieldOperation, log.OpStartup, log.FieldDBPath, db.Path(), log.FieldError, err)
		return nil, err
	}

	svcCfg := services.DefaultServiceConfig()
	svcCfg.CacheSize = cfg.TotalsCacheSize
	svcCfg.CacheTTL = cfg.TotalsCacheTTL
	svcCfg.CleanInterval = cfg.CacheCleanInterval
	svcCfg.Logger = logger

	svc := services.NewLedgerService(db, svcCfg)
	logger.DebugContext(ctx, "Ledger service ready", log.FieldDBPath, db.Path())
	return svc, nil
}
