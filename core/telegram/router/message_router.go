package router

import (
	"strings"

	tg "github.com/m3rciful/kinobot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// MediaEndpoints are the attachment updates routed to MessageOptions.Media.
var MediaEndpoints = []string{
	tele.OnVideo,
	tele.OnDocument,
	tele.OnAudio,
	tele.OnPhoto,
	tele.OnVoice,
	tele.OnAnimation,
	tele.OnVideoNote,
	tele.OnSticker,
}

// MessageOptions controls fallback behaviour for text and attachment updates.
type MessageOptions struct {
	// UnknownText handles text when the registry has no text fallback.
	UnknownText tele.HandlerFunc
	// Media handles every endpoint in MediaEndpoints. nil skips attachments.
	Media tele.HandlerFunc
}

// MessageRoutes builds handlers for plain text and attachments. Text that
// names a public command alias runs that command; everything else goes to the
// registry text fallback. Admin-only commands stay reachable only through
// CommandRoutes and their admin check.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	text := func(c tele.Context) error {
		msg := c.Text()
		if reg != nil && strings.HasPrefix(msg, "/") {
			if cmd, ok := reg.Command(msg); ok && !cmd.AdminOnly {
				return handle(c, handlerName("command.", cmd.Name), cmd.Handler)
			}
		}
		var fallback tele.HandlerFunc
		if reg != nil {
			fallback = reg.TextFallback()
		}
		switch {
		case fallback != nil:
			return handle(c, "text", fallback)
		case opts.UnknownText != nil:
			return handle(c, "unknown_text", opts.UnknownText)
		}
		skip(c, "unknown_text")
		return nil
	}

	media := func(c tele.Context) error {
		if opts.Media == nil {
			skip(c, "media")
			return nil
		}
		return handle(c, "media", opts.Media)
	}

	routes := make([]tg.Route, 0, len(MediaEndpoints)+1)
	routes = append(routes, tg.Route{Endpoint: tele.OnText, Handler: text})
	for _, ep := range MediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: media})
	}
	return routes
}
