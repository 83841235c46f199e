package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes the Send helpers through d. Nil restores inline sends.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// enqueue hands run to the dispatcher, or runs it inline when none is set or
// the dispatcher refuses the job.
func enqueue(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}

	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, sender.Job{Action: action, ChatID: chatID, Run: run})
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	if len(opts) > 0 && opts[0] != nil {
		so := opts[0]
		return enqueue(c, "send.text", func() error { return c.Send(text, so) })
	}
	return enqueue(c, "send.text", func() error { return c.Send(text) })
}

// SendMarkup sends text with a keyboard; a nil markup sends plain text.
func SendMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return SendText(c, text)
	}
	return enqueue(c, "send.markup", func() error {
		return c.Send(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}

// EditOrSendText edits the message behind a callback, or sends a new one when
// there is nothing to edit. It runs inline because callers act on the result.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return c.EditOrSend(text)
	}
	return c.EditOrSend(text, markup)
}
