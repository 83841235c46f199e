package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "kinobot.replies"

// replies counts what a handler sent back. Sends queued on the dispatcher
// land after the handler returns, so the counters are atomic.
type replies struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// countingContext forwards outbound calls and records the successful ones.
type countingContext struct {
	tele.Context
	r *replies
}

func (c countingContext) record(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	c.r.messages.Add(1)
	if hasKeyboard(opts) {
		c.r.keyboard.Store(true)
	}
	return nil
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.record(c.Context.EditOrReply(what, opts...), opts)
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// ReplyCounter wraps the context so handler summaries can report how many
// messages were sent and whether any carried a keyboard.
func ReplyCounter(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		r := &replies{}
		c.Set(repliesKey, r)
		return next(countingContext{Context: c, r: r})
	}
}

// Replies reads the counters installed by ReplyCounter.
func Replies(c tele.Context) (messages int, keyboard bool) {
	r, ok := c.Get(repliesKey).(*replies)
	if !ok || r == nil {
		return 0, false
	}
	return int(r.messages.Load()), r.keyboard.Load()
}
