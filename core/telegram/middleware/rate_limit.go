package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two handled updates of one user.
	Interval time.Duration
	// Exclude lists update classes that bypass the limit: callback, message
	// or inline_query.
	Exclude map[string]struct{}
	// OnLimited, when set, answers a dropped update.
	OnLimited tele.HandlerFunc

	now func() time.Time
}

// limiter remembers when each user was last let through. Entries older than
// the interval are swept at most once per interval.
type limiter struct {
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	last      map[int64]time.Time
	lastSweep time.Time
}

func (l *limiter) allow(userID int64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.interval {
		for id, seen := range l.last {
			if now.Sub(seen) >= l.interval {
				delete(l.last, id)
			}
		}
		l.lastSweep = now
	}
	if seen, ok := l.last[userID]; ok && now.Sub(seen) < l.interval {
		return false
	}
	l.last[userID] = now
	return true
}

func rateClass(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware drops updates that arrive from a user sooner than
// Interval after their previous one. A non-positive Interval disables it.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.now
	if now == nil {
		now = time.Now
	}
	l := &limiter{interval: opts.Interval, now: now, last: make(map[int64]time.Time)}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			class := rateClass(c.Update())
			if _, skip := opts.Exclude[class]; skip {
				return next(c)
			}
			if l.allow(user.ID) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", class),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
