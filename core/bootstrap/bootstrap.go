// Package bootstrap prepares process-wide infrastructure before the bot
// starts: logging first, then the database when the postgres driver is on.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	coredatabase "github.com/m3rciful/kinobot/core/database"
	"github.com/m3rciful/kinobot/core/logger"
)

// Options holds the config and optional replacements for each step.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result carries what Run opened. DB is nil for the json driver.
type Result struct {
	DB *sqlx.DB
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Run initializes logging and, for the postgres driver, a migrated database.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()

	if err := opts.LoggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if !strings.EqualFold(cfg.Storage.Driver, coreconfig.StoragePostgres) {
		return &Result{}, nil
	}

	db, err := openDatabase(opts, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &Result{DB: db}, nil
}

func openDatabase(opts Options, dbCfg coredatabase.Config) (*sqlx.DB, error) {
	start := time.Now()
	db, err := opts.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := opts.Migrate(dbCfg); err != nil {
		return nil, errors.Join(fmt.Errorf("bootstrap: migrations failed: %w", err), db.Close())
	}
	logger.Info(logger.Background(), "app", "database.ready",
		slog.String("host", dbCfg.Host),
		slog.String("db", dbCfg.Name),
		slog.Duration("duration", logger.Since(start)),
	)
	return db, nil
}
