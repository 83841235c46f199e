// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits cb into its unique key and payload. Telebot fills Unique when
// the data used its "\f<unique>|<payload>" form; anything else is split here.
func Parse(cb *tele.Callback) (key, payload string) {
	switch {
	case cb == nil:
		return "", ""
	case cb.Unique != "":
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(cb.Data, "\f"), `\f`)
	key, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}
