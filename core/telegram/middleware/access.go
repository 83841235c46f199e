package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

// Gate decides who may pass Restrict.
type Gate struct {
	Allow func(ctx context.Context, userID int64) bool
	// Deny runs for rejected updates. nil drops them silently.
	Deny tele.HandlerFunc
}

// Restrict passes only updates whose sender is accepted by g.Allow. Updates
// without a sender, or a gate without Allow, are rejected.
func Restrict(g Gate) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			if u := c.Sender(); u != nil && g.Allow != nil && g.Allow(ctx, u.ID) {
				return next(c)
			}
			logger.Debug(ctx, "tg", "access", slog.String("status", "rejected"))
			if g.Deny == nil {
				return nil
			}
			return g.Deny(c)
		}
	}
}
