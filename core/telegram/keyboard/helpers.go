// Package keyboard builds reply and inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button: a link when URL is set, a callback otherwise.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// Link returns a button that opens url.
func Link(text, url string) Button { return Button{Text: text, URL: url} }

// Action returns a callback button carrying unique and an optional payload.
func Action(text, unique string, data ...string) Button {
	b := Button{Text: text, Unique: unique}
	if len(data) > 0 {
		b.Data = data[0]
	}
	return b
}

func (b Button) inline(m *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *m.URL(b.Text, b.URL).Inline()
	}
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// Reply builds a resizable reply keyboard, one slice of labels per row.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	for _, labels := range rows {
		row := make([]tele.ReplyButton, len(labels))
		for i, label := range labels {
			row[i] = tele.ReplyButton{Text: label}
		}
		m.ReplyKeyboard = append(m.ReplyKeyboard, row)
	}
	return m
}

// Inline builds an inline keyboard from rows of buttons.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	for _, buttons := range rows {
		row := make([]tele.InlineButton, len(buttons))
		for i, b := range buttons {
			row[i] = b.inline(m)
		}
		m.InlineKeyboard = append(m.InlineKeyboard, row)
	}
	return m
}

// Column stacks buttons one per row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	rows := make([][]Button, len(buttons))
	for i, b := range buttons {
		rows[i] = []Button{b}
	}
	return Inline(rows...)
}
