// Package telegram assembles a telebot bot from routes, middlewares and
// lifecycle hooks and runs it until its context ends.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware, applied in slice order.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint: a command string or one of the
// tele.On* constants.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// DispatcherOptions configures the outbound send queue used by the
	// helpers package.
	DispatcherOptions sender.Options

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips deleting a registered webhook before long polling.
	KeepWebhook bool

	// OnError receives handler errors and recovered panics. c may be nil.
	OnError func(err error, c tele.Context)

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see of the running bot.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *sender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, runs OnStart, serves updates until ctx is done
// and then runs OnStop. A cancelled ctx is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller, modeAttrs := newPoller(cfg)
	started := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  newHTTPClient(pollTimeout(cfg)),
		OnError: opts.OnError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %s", sender.Redact(err))
	}
	logger.Info(ctx, "tg", "mode", append(modeAttrs,
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", time.Since(started)),
	)...)

	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll && !opts.KeepWebhook {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, "tg", "delete_webhook", slog.String("status", "fail"), slog.String("err", sender.Redact(err)))
		}
	}

	wire(bot, reg, opts)

	dispatcher := sender.New(opts.DispatcherOptions)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		tghelpers.SetDispatcher(nil)
		dispatcher.Close()
	}()

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		if err := ctx.Err(); !errors.Is(err, context.Canceled) {
			runErr = err
		}
	case <-done:
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	return runErr
}

// wire installs middlewares, routes and the public command menu on bot.
func wire(bot *tele.Bot, reg *Registry, opts RunOptions) {
	var names []string
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
			names = append(names, mw.Name)
		}
	}
	routes := 0
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
			routes++
		}
	}

	ctx := logger.Background()
	if err := bot.SetCommands(reg.MenuCommands()); err != nil {
		logger.Error(ctx, "tg.wire", "commands.set", slog.String("status", "fail"), slog.String("err", sender.Redact(err)))
	}
	logger.Info(ctx, "tg.wire", "wired",
		slog.String("middlewares", strings.Join(names, ",")),
		slog.Int("count", routes),
	)
}
