package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

// PanicError is returned by Recover in place of a handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Code is picked up by the router summaries.
func (e *PanicError) Code() string { return "PANIC" }

// Recover converts a handler panic into a *PanicError so it reaches the bot's
// OnError hook and the process keeps serving.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			logger.Error(tghelpers.BuildContext(c), "tg", "panic",
				slog.String("status", "fail"),
				slog.Any("err", r),
				slog.String("stack", string(pe.Stack)),
			)
			err = pe
		}()
		return next(c)
	}
}
