// Package postgres implements the persistence interfaces on PostgreSQL
// through sqlx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lumetric/lumetric/internal/persistence"
)

// Config holds database connection configuration
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns pool defaults suitable for a single service instance
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Store bundles the PostgreSQL repositories behind one connection pool
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStore opens the pool, verifies connectivity, and returns the store
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, timeout: cfg.QueryTimeout}, nil
}

// DB exposes the underlying pool for migrations
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the connection pool
func (s *Store) Close() error { return s.db.Close() }

// Touchpoints returns the touchpoint repository
func (s *Store) Touchpoints() persistence.TouchpointRepo { return &touchpointRepo{s.db, s.timeout} }

// Conversions returns the conversion repository
func (s *Store) Conversions() persistence.ConversionRepo { return &conversionRepo{s.db, s.timeout} }

// Attributions returns the weight-record repository
func (s *Store) Attributions() persistence.AttributionRepo { return &attributionRepo{s.db, s.timeout} }

// Series returns the daily-series repository
func (s *Store) Series() persistence.SeriesRepo { return &seriesRepo{s.db, s.timeout} }

// Models returns the MMM artifact repository
func (s *Store) Models() persistence.ModelRepo { return &modelRepo{s.db, s.timeout} }

// Optimizations returns the budget-optimization repository
func (s *Store) Optimizations() persistence.OptimizationRepo {
	return &optimizationRepo{s.db, s.timeout}
}
