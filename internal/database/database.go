// Package database handles relational and document store connections and schema management.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chirp/internal/config"
	"chirp/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectOptions controls optional work done while connecting.
type ConnectOptions struct {
	ApplySchema bool
}

// Connect opens the relational store selected by STORE_DRIVER and applies the schema policy.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions opens the relational store selected by STORE_DRIVER.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(middleware.Logger, cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialector.Name(), err)
	}
	if err := db.Use(sqlTracer{}); err != nil {
		return nil, fmt.Errorf("register sql tracing: %w", err)
	}
	if err := tunePool(db, poolFor(cfg)); err != nil {
		return nil, err
	}
	middleware.Logger.Info("Database connected", slog.String("driver", dialector.Name()))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), db, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		middleware.Logger.Info("Database schema ready")
	}
	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres, "":
		return postgres.Open(postgresDSN(cfg)), nil
	case config.StoreDriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "chirp.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("store driver %q is not relational", cfg.StoreDriver)
	}
}

func postgresDSN(cfg *config.Config) string {
	ssl := cfg.DBSSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, ssl)
}

type pool struct {
	maxOpen, maxIdle int
	lifetime         time.Duration
}

// poolFor fills unset pool settings with defaults. SQLite gets one connection:
// it has a single writer and each :memory: connection is its own database.
func poolFor(cfg *config.Config) pool {
	if cfg.StoreDriver == config.StoreDriverSQLite {
		return pool{maxOpen: 1, maxIdle: 1}
	}
	p := pool{maxOpen: 25, maxIdle: 5, lifetime: 5 * time.Minute}
	if cfg.DBMaxOpenConns > 0 {
		p.maxOpen = cfg.DBMaxOpenConns
	}
	if cfg.DBMaxIdleConns > 0 {
		p.maxIdle = cfg.DBMaxIdleConns
	}
	if cfg.DBConnMaxLifetime > 0 {
		p.lifetime = time.Duration(cfg.DBConnMaxLifetime) * time.Minute
	}
	return p
}

func tunePool(db *gorm.DB, p pool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	return nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
