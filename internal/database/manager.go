// Package database wires the optional report stores: PostgreSQL for reward
// history, Redis for a report cache, and InfluxDB for performance series.
// Each backend is enabled by its own configuration and connected
// independently; a backend that cannot be reached is skipped.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bardlex/guardreport/internal/database/influx"
	"github.com/bardlex/guardreport/internal/database/postgres"
	"github.com/bardlex/guardreport/internal/database/redis"
	"github.com/bardlex/guardreport/internal/report"
	"github.com/bardlex/guardreport/pkg/log"
	"github.com/bardlex/guardreport/pkg/retry"
)

// Manager holds the connected report stores
type Manager struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	Influx   *influx.Client

	Rewards *postgres.RewardRepository

	reportTTL   time.Duration
	logger      *log.Logger
	retryConfig *retry.Config
}

// Config holds configuration for all database systems. A nil or empty
// section disables that backend.
type Config struct {
	Postgres  *postgres.Config
	Redis     *redis.Config
	ReportTTL time.Duration
	Influx    *influx.Config
}

// NewManager connects every configured backend
func NewManager(ctx context.Context, cfg *Config, logger *log.Logger) *Manager {
	m := &Manager{
		reportTTL:   cfg.ReportTTL,
		logger:      logger.WithComponent("database"),
		retryConfig: retry.SinkConfig(),
	}

	if cfg.Postgres != nil && cfg.Postgres.DSN != "" {
		m.connectPostgres(ctx, cfg.Postgres)
	}

	if cfg.Redis != nil && cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			m.logger.WithError(err).Warn("Redis unavailable, report cache disabled")
		} else {
			m.Redis = client
		}
	}

	if cfg.Influx != nil && cfg.Influx.URL != "" {
		client, err := influx.NewClient(ctx, cfg.Influx)
		if err != nil {
			m.logger.WithError(err).Warn("InfluxDB unavailable, performance series disabled")
		} else {
			m.Influx = client
		}
	}

	return m
}

func (m *Manager) connectPostgres(ctx context.Context, cfg *postgres.Config) {
	client, err := postgres.NewClient(ctx, cfg)
	if err != nil {
		m.logger.WithError(err).Warn("PostgreSQL unavailable, reward history disabled")
		return
	}

	rewards := postgres.NewRewardRepository(client.DB())
	if err := rewards.EnsureSchema(ctx); err != nil {
		m.logger.WithError(err).Warn("failed to create reward schema, reward history disabled")
		_ = client.Close()
		return
	}

	m.Postgres = client
	m.Rewards = rewards
}

// Sinks returns a report sink for every connected backend
func (m *Manager) Sinks() []report.Sink {
	var sinks []report.Sink
	if m.Rewards != nil {
		sinks = append(sinks, &postgresSink{repo: m.Rewards, retryConfig: m.retryConfig})
	}
	if m.Redis != nil {
		sinks = append(sinks, &redisSink{client: m.Redis, ttl: m.reportTTL, retryConfig: m.retryConfig})
	}
	if m.Influx != nil {
		sinks = append(sinks, &influxSink{client: m.Influx, retryConfig: m.retryConfig})
	}
	return sinks
}

// Close closes all database connections
func (m *Manager) Close() error {
	var errs []error

	if m.Postgres != nil {
		if err := m.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("PostgreSQL close error: %w", err))
		}
	}

	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if m.Influx != nil {
		m.Influx.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("database close errors: %v", errs)
	}

	return nil
}
