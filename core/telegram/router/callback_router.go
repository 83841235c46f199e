package router

import (
	"log/slog"

	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises the unknown-key fallback.
type CallbackOptions struct {
	// NotFound is used when the registry has no fallback of its own.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its key. The query is
// acknowledged up front so the client stops its spinner even if the handler
// fails.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			key, _ := callbacks.Parse(c.Callback())
			name := handlerName("callback.", key)
			attrs := []slog.Attr{slog.String("cb_key", key)}

			if h, ok := reg.Callback(key); ok {
				_ = c.Respond()
				return handle(c, name, h, attrs...)
			}

			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			if fallback == nil {
				_ = c.Respond()
				skip(c, name)
				return nil
			}
			return handle(c, name, fallback, append(attrs, slog.String("reason", "not_found"))...)
		},
	}
}
