package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/kinobot/core/logger"
)

var (
	// readyTimeout bounds how long Connect waits for the server to accept
	// connections, e.g. while a compose stack is still starting.
	readyTimeout = 30 * time.Second
	retryEvery   = 2 * time.Second
)

// Connect opens the pool, waits until the server answers a ping and sizes the
// pool from cfg.MaxConnections.
func Connect(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", URL(cfg))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	start := time.Now()
	attempts, err := pingUntilReady(ctx, db)
	took := logger.Since(start)

	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("db", cfg.Name),
		slog.Int("attempts", attempts),
		slog.Duration("duration", took),
	}
	if err != nil {
		_ = db.Close()
		logger.Error(ctx, "db", "db.connect", append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.Info(ctx, "db", "db.connect", append(attrs, slog.String("status", "ok"), slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// pingUntilReady pings db every retryEvery until it answers or ctx ends.
func pingUntilReady(ctx context.Context, db *sqlx.DB) (int, error) {
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return attempt, nil
		}
		logger.Debug(ctx, "db", "db.wait", slog.Int("attempts", attempt), slog.String("err", err.Error()))
		select {
		case <-ctx.Done():
			return attempt, fmt.Errorf("database not ready: %w", err)
		case <-time.After(retryEvery):
		}
	}
}
