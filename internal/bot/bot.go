// Package bot dispatches Telegram updates by role: privileged users drive the
// admin conversation engine, plain users pass the subscription gate and then
// exchange codes for catalog media.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tg "github.com/m3rciful/kinobot/core/telegram"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/core/telegram/router"
	"github.com/m3rciful/kinobot/core/telegram/state"
	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/conversation"
	"github.com/m3rciful/kinobot/internal/gate"
	"github.com/m3rciful/kinobot/internal/store"
)

// Metrics receives delivery outcomes and the catalog size.
type Metrics interface {
	ObserveDelivery(kind, outcome string)
	SetCatalogItems(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDelivery(string, string) {}
func (noopMetrics) SetCatalogItems(int)            {}

// Options wires a Bot.
type Options struct {
	Store    store.Store
	Policy   *access.Policy
	Gate     *gate.Gate
	Engine   *conversation.Engine
	Platform *Platform
	Metrics  Metrics
	Now      func() time.Time
}

// Bot holds the update handlers.
type Bot struct {
	store    store.Store
	policy   *access.Policy
	gate     *gate.Gate
	engine   *conversation.Engine
	platform *Platform
	metrics  Metrics
	now      func() time.Time
}

// New validates opts and builds a Bot.
func New(opts Options) (*Bot, error) {
	if opts.Store == nil || opts.Policy == nil || opts.Gate == nil || opts.Engine == nil || opts.Platform == nil {
		return nil, errors.New("bot: store, policy, gate, engine and platform are required")
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{
		store:    opts.Store,
		policy:   opts.Policy,
		gate:     opts.Gate,
		engine:   opts.Engine,
		platform: opts.Platform,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}, nil
}

// Register adds the bot's commands, callbacks and text fallback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	reg.SetTextFallback(b.Text)
	return errors.Join(
		reg.AddCommand(tg.Command{Name: "/start", Description: "Start the bot", Handler: b.Start}),
		reg.AddCommand(tg.Command{Name: "/cancel", Description: "Cancel the current action", Handler: b.Cancel}),
		reg.AddCommand(tg.Command{Name: "/panel", Description: "Open the admin panel", Handler: b.Panel, AdminOnly: true}),
		reg.AddCallback(CallbackCheckSubscription, b.CheckSubscription),
	)
}

// Routes builds every endpoint route from reg, which must already hold Register's entries.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{IsAdmin: b.isAdmin})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{Media: b.Media})...)
	return routes
}

// Middlewares returns the per-user serialisation and activity tracking
// middlewares, in that order.
func (b *Bot) Middlewares() []tg.Middleware {
	return []tg.Middleware{
		{Name: "serialize", Use: state.Serialize(b.engine.Sessions())},
		{Name: "activity", Use: b.Activity},
	}
}

// Activity registers the sender on first contact and refreshes their last
// activity time. A store failure is logged and the update still runs.
func (b *Bot) Activity(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if user := c.Sender(); user != nil {
			ctx := tghelpers.BuildContext(c)
			created, err := b.store.Users().Touch(ctx, user.ID, b.now())
			switch {
			case err != nil:
				logger.Warn(ctx, "bot", "user.touch.fail",
					slog.Int64("user_id", user.ID),
					slog.String("err", err.Error()),
				)
			case created:
				logger.Info(ctx, "bot", "user.registered", slog.Int64("user_id", user.ID))
			}
		}
		return next(c)
	}
}

// RefreshCatalog publishes the current catalog size.
func (b *Bot) RefreshCatalog(ctx context.Context) {
	n, err := b.store.Media().Count(ctx)
	if err != nil {
		logger.Warn(ctx, "bot", "catalog.count.fail", slog.String("err", err.Error()))
		return
	}
	b.metrics.SetCatalogItems(n)
}

// OnError logs a failed update and reports it to the owner by direct message.
func (b *Bot) OnError(err error, c tele.Context) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "bot", "handler.error", slog.String("err", logger.SanitizeLimit(err.Error(), 512)))

	text := textOwnerAlert + logger.SanitizeLimit(err.Error(), 1000)
	if nerr := b.platform.Notify(b.policy.OwnerID(), text); nerr != nil {
		logger.Warn(ctx, "bot", "owner.notify.fail", slog.String("err", nerr.Error()))
	}
}

func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	return b.policy.Classify(ctx, userID).Privileged()
}
