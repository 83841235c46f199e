package state

import tele "gopkg.in/telebot.v4"

// Locker is the part of Manager the serialising middleware needs.
type Locker interface {
	Lock(userID int64) (unlock func())
}

// Serialize runs the handlers of one user strictly one after another.
// Updates without a sender pass through unlocked.
func Serialize(l Locker) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if l == nil || sender == nil {
				return next(c)
			}
			unlock := l.Lock(sender.ID)
			defer unlock()
			return next(c)
		}
	}
}
