// Package router turns a telegram.Registry into telebot routes. Every route
// ends with one handler.handled line summarising the update.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// handle runs h as the named handler and logs its summary.
func handle(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := h(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	summarize(c, name, status, err, time.Since(start), extras...)
	return err
}

// skip logs a summary for an update no handler took.
func skip(c tele.Context, name string) {
	tghelpers.WithHandler(c, name)
	summarize(c, name, "skip", nil, 0)
}

func summarize(c tele.Context, name, status string, err error, took time.Duration, extras ...slog.Attr) {
	msgs, kb := middleware.Replies(c)
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(tghelpers.BuildContext(c), "tg", "handler.handled", append(attrs, extras...)...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(prefix, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		key = "unknown"
	}
	return prefix + strings.ReplaceAll(key, " ", "_")
}

// errorCode prefers an explicit Code() and otherwise names the error type.
// Plain errors.New and fmt.Errorf values map to INTERNAL.
func errorCode(err error) string {
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		if code := strings.TrimSpace(coder.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	typ := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	pkg, name, ok := strings.Cut(typ, ".")
	if !ok || pkg == "errors" || pkg == "fmt" {
		return "INTERNAL"
	}
	return strings.ToUpper(name)
}
