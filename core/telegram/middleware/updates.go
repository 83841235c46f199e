package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind classifies an update as callback, command, text, media or other.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message == nil:
		return "other"
	case strings.HasPrefix(upd.Message.Text, "/"):
		return "command"
	case upd.Message.Text != "":
		return "text"
	case upd.Message.Video != nil, upd.Message.Document != nil, upd.Message.Audio != nil,
		upd.Message.Photo != nil, upd.Message.Voice != nil, upd.Message.Animation != nil,
		upd.Message.VideoNote != nil, upd.Message.Sticker != nil:
		return "media"
	}
	return "other"
}

// UpdateCounter reports the kind of every update to observe before handling it.
func UpdateCounter(observe func(kind string)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if observe != nil {
				observe(UpdateKind(c.Update()))
			}
			return next(c)
		}
	}
}
