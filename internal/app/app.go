// Package app assembles the kino bot from configuration: record store,
// access policy, subscription gate, conversation engine and dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/kinobot/core/bootstrap"
	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
	"github.com/m3rciful/kinobot/core/telegram/sender"
	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/bot"
	"github.com/m3rciful/kinobot/internal/conversation"
	"github.com/m3rciful/kinobot/internal/gate"
	"github.com/m3rciful/kinobot/internal/store"
	"github.com/m3rciful/kinobot/internal/store/filestore"
	"github.com/m3rciful/kinobot/internal/store/pgstore"
)

// App is a fully wired bot ready to hand to the telegram runtime.
type App struct {
	cfg      *coreconfig.Config
	db       *sqlx.DB
	store    store.Store
	recorder *metrics.Recorder
	platform *bot.Platform
	bot      *bot.Bot
	registry *tg.Registry
}

// New runs the bootstrap pipeline and builds the app on top of it.
func New(ctx context.Context, cfg *coreconfig.Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	a, err := Build(ctx, cfg, res)
	if err != nil && res.DB != nil {
		_ = res.DB.Close()
	}
	return a, err
}

// Build wires the app from already initialised infrastructure. res.DB must
// be set when the postgres driver is selected.
func Build(ctx context.Context, cfg *coreconfig.Config, res *bootstrap.Result) (*App, error) {
	if cfg == nil || res == nil {
		return nil, errors.New("app: config and bootstrap result are required")
	}
	recorder := metrics.New()

	st, err := openStore(ctx, cfg, res.DB, recorder)
	if err != nil {
		return nil, err
	}

	policy := access.NewPolicy(cfg.Telegram.OwnerID, st.Admins())
	platform := &bot.Platform{}
	engine, err := conversation.New(conversation.Options{
		Store:    st,
		Policy:   policy,
		Resolver: platform,
		Observer: recorder,
	})
	if err != nil {
		return nil, err
	}
	b, err := bot.New(bot.Options{
		Store:    st,
		Policy:   policy,
		Gate:     gate.New(st.Channels(), st.Users(), platform, recorder),
		Engine:   engine,
		Platform: platform,
		Metrics:  recorder,
	})
	if err != nil {
		return nil, err
	}

	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}

	return &App{
		cfg:      cfg,
		db:       res.DB,
		store:    st,
		recorder: recorder,
		platform: platform,
		bot:      b,
		registry: reg,
	}, nil
}

func openStore(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB, recorder *metrics.Recorder) (store.Store, error) {
	owner := cfg.Telegram.OwnerID
	if strings.EqualFold(cfg.Storage.Driver, coreconfig.StoragePostgres) {
		if db == nil {
			return nil, errors.New("app: postgres storage selected without a database connection")
		}
		st, err := pgstore.Open(ctx, db, owner, recorder)
		if err != nil {
			return nil, fmt.Errorf("app: open postgres store: %w", err)
		}
		return st, nil
	}

	st, err := filestore.Open(ctx, filestore.Options{
		Dir:          cfg.Storage.Dir,
		AdminsFile:   cfg.Storage.AdminsFile,
		MediaFile:    cfg.Storage.MediaFile,
		ChannelsFile: cfg.Storage.ChannelsFile,
		UsersFile:    cfg.Storage.UsersFile,
		OwnerID:      owner,
		Observer:     recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("app: open json store: %w", err)
	}
	return st, nil
}

// CoreConfig satisfies the runner's config carrier contract.
func (a *App) CoreConfig() *coreconfig.Config { return a.cfg }

// TelegramRunOptions assembles middlewares, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	mws := tg.DefaultMiddlewares(a.cfg, nil)
	mws = append(mws, tg.Middleware{Name: "update_counter", Use: middleware.UpdateCounter(a.recorder.ObserveUpdate)})
	mws = append(mws, a.bot.Middlewares()...)

	return tg.RunOptions{
		Config:            a.cfg,
		Registry:          a.registry,
		DispatcherOptions: sender.Options{Observe: a.recorder.ObserveSend},
		Middlewares:       mws,
		Routes:            a.bot.Routes(a.registry),
		OnError:           a.bot.OnError,
		OnStart:           a.start,
		OnStop:            a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.platform.Bind(rt.Bot)
	}
	a.bot.RefreshCatalog(ctx)

	srv := metrics.NewServer(a.cfg.Server.Listen, a.cfg.Server.Port, metrics.Router(a.recorder, a.healthCheck))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("app: start http server: %w", err)
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	if err := a.store.Close(); err != nil {
		logger.Warn(ctx, "app", "store.close.fail", slog.String("err", err.Error()))
		return err
	}
	return nil
}

// healthCheck pings the database when one is in use. The JSON store has
// nothing that can go away at runtime.
func (a *App) healthCheck(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}
