package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/kinobot/core/logger"
	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin check applied to AdminOnly commands.
type CommandRouteOptions struct {
	IsAdmin       func(ctx context.Context, userID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per command name and alias.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.Restrict(middleware.Gate{Allow: opts.IsAdmin, Deny: opts.OnAdminReject})

	var routes []tg.Route
	for _, cmd := range reg.Commands() {
		name := handlerName("command.", cmd.Name)
		inner := cmd.Handler
		h := func(c tele.Context) error { return handle(c, name, inner) }
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		routes = append(routes, tg.Route{Endpoint: cmd.Name, Handler: h})
		for _, alias := range cmd.Aliases {
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.Info(logger.Background(), "tg.wire", "routes.commands",
		slog.Int("count", len(routes)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}
