package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cryptoshop/shopbot/internal/config"
)

// DB holds database connections
type DB struct {
	Postgres *sqlx.DB
}

// NewDB creates new database connections using config
func NewDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DB, error) {
	postgres, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	postgres.SetMaxOpenConns(cfg.Database.MaxConns)
	postgres.SetMaxIdleConns(cfg.Database.MinConns)
	postgres.SetConnMaxLifetime(time.Hour)

	if err := postgres.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name))

	return &DB{
		Postgres: postgres,
	}, nil
}

// EnsureSchema creates the durable tables if they do not exist yet. The
// unique index on orders.invoice_id is what makes payment confirmation
// idempotent; the one on giveaway_entries backstops the entry transaction.
func (db *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			user_id BIGINT NOT NULL,
			product_id INT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			invoice_id TEXT NOT NULL UNIQUE,
			discount_code TEXT,
			discount_percent INT NOT NULL DEFAULT 0,
			referred_by BIGINT,
			address TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS discount_codes (
			code TEXT PRIMARY KEY,
			percent INT NOT NULL,
			expires DATE
		)`,
		`CREATE TABLE IF NOT EXISTS giveaways (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			prize TEXT NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			max_entries INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS giveaway_entries (
			id BIGSERIAL PRIMARY KEY,
			giveaway_id BIGINT NOT NULL REFERENCES giveaways (id),
			user_id BIGINT NOT NULL,
			username TEXT NOT NULL,
			entered_at TIMESTAMPTZ NOT NULL,
			UNIQUE (giveaway_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS broadcast_messages (
			id BIGSERIAL PRIMARY KEY,
			message_text TEXT NOT NULL,
			sent_by BIGINT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL,
			recipients INT NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Postgres.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}

// Close closes all database connections
func (db *DB) Close() error {
	if err := db.Postgres.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}

	return nil
}
