package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/conversation"
	"github.com/m3rciful/kinobot/internal/store"
)

const (
	textWelcome        = "🎬 Welcome to the kino bot!\n\nSend a code to get a film."
	textSendCode       = "📥 Send a code to get a film."
	textSubscribe      = "⚠️ To use the bot, subscribe to the channels below:"
	textSubscribedOK   = "✅ Subscription confirmed! You can use the bot now.\n\nSend a code to get a film."
	textNotSubscribed  = "❌ You are not subscribed to every channel yet.\nSubscribe to all of them and check again."
	textHelp           = "🎬 Kino bot help\n\n📥 Send a code published in our channels to get the film.\n📢 You must stay subscribed to the channels to use the bot."
	textNotFound       = "❌ Film not found.\nCheck the code and try again."
	textBadFormat      = "❌ This film has an unsupported format."
	textDeliveryFailed = "❌ Could not send the film. Please try again later."
	textOwnerAlert     = "❌ Bot error:\n"
)

// Start handles /start: privileged users get their panel with a fresh
// session, plain users pass the gate and get the welcome text.
func (b *Bot) Start(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	role := b.policy.Classify(ctx, user.ID)
	if role.Privileged() {
		b.engine.Reset(user.ID)
		return b.reply(c, role, b.engine.Greeting(role))
	}
	if ok, err := b.passGate(ctx, c, user.ID); !ok || err != nil {
		return err
	}
	return tghelpers.SendMarkup(c, textWelcome, userMenu())
}

// Panel handles the admin-only /panel command.
func (b *Bot) Panel(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	role := b.policy.Classify(tghelpers.BuildContext(c), user.ID)
	return b.reply(c, role, b.engine.Greeting(role))
}

// Cancel handles /cancel.
func (b *Bot) Cancel(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	role := b.policy.Classify(ctx, user.ID)
	if role.Privileged() {
		return b.converse(ctx, c, conversation.Input{UserID: user.ID, Role: role, Text: conversation.CommandCancel})
	}
	return tghelpers.SendMarkup(c, textSendCode, userMenu())
}

// Text handles plain text: the admin engine for privileged users, help or a
// catalog lookup behind the gate for everyone else.
func (b *Bot) Text(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	role := b.policy.Classify(ctx, user.ID)
	if role.Privileged() {
		return b.converse(ctx, c, conversation.Input{UserID: user.ID, Role: role, Text: c.Text()})
	}

	if ok, err := b.passGate(ctx, c, user.ID); !ok || err != nil {
		return err
	}
	text := strings.TrimSpace(c.Text())
	if text == conversation.LabelHelp {
		return tghelpers.SendMarkup(c, textHelp, userMenu())
	}
	return b.deliver(ctx, c, user.ID, text)
}

// Media feeds attachments from privileged users to the engine. Plain users'
// attachments are ignored.
func (b *Bot) Media(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	role := b.policy.Classify(ctx, user.ID)
	if !role.Privileged() {
		logger.Debug(ctx, "bot", "media.ignored", slog.Int64("user_id", user.ID))
		return nil
	}
	att := attachmentOf(c.Message())
	if att == nil {
		return nil
	}
	return b.converse(ctx, c, conversation.Input{UserID: user.ID, Role: role, Attachment: att})
}

// CheckSubscription re-runs the gate and edits the prompt in place. On
// failure the channel buttons stay.
func (b *Bot) CheckSubscription(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ok, err := b.gate.Verify(ctx, user.ID)
	if err != nil {
		return err
	}
	if ok {
		return ignoreUnchanged(tghelpers.EditOrSendText(c, textSubscribedOK, nil))
	}
	channels, err := b.gate.Channels(ctx)
	if err != nil {
		return err
	}
	return ignoreUnchanged(tghelpers.EditOrSendText(c, textNotSubscribed, subscriptionMenu(channels)))
}

// passGate verifies the user and, on failure, sends the subscription prompt.
func (b *Bot) passGate(ctx context.Context, c tele.Context, userID int64) (bool, error) {
	ok, err := b.gate.Verify(ctx, userID)
	if err != nil || ok {
		return ok, err
	}
	channels, err := b.gate.Channels(ctx)
	if err != nil {
		return false, err
	}
	return false, tghelpers.SendMarkup(c, textSubscribe, subscriptionMenu(channels))
}

func (b *Bot) converse(ctx context.Context, c tele.Context, in conversation.Input) error {
	r, err := b.engine.Handle(ctx, in)
	if err != nil {
		return err
	}
	b.RefreshCatalog(ctx)
	return b.reply(c, in.Role, r)
}

func (b *Bot) reply(c tele.Context, role access.Role, r conversation.Reply) error {
	return tghelpers.SendMarkup(c, r.Text, markupFor(role, r.Menu))
}

// deliver sends the media stored under code and counts the download. The
// send runs inline so counters only move after Telegram accepted it.
func (b *Bot) deliver(ctx context.Context, c tele.Context, userID int64, code string) error {
	rec, err := b.store.Media().Get(ctx, code)
	if errors.Is(err, store.ErrNotFound) || code == "" {
		b.metrics.ObserveDelivery("", "not_found")
		logger.Info(ctx, "bot", "delivery",
			slog.String("outcome", "not_found"),
			slog.Int64("user_id", userID),
			slog.String("code", logger.SanitizeLimit(code, 64)),
		)
		return tghelpers.SendMarkup(c, textNotFound, userMenu())
	}
	if err != nil {
		return fmt.Errorf("bot: lookup %q: %w", code, err)
	}

	what, ok := sendable(rec)
	if !ok {
		b.metrics.ObserveDelivery(string(rec.MediaKind), "bad_kind")
		logger.Warn(ctx, "bot", "delivery",
			slog.String("outcome", "bad_kind"),
			slog.String("code", rec.Code),
			slog.String("media_kind", string(rec.MediaKind)),
		)
		return tghelpers.SendText(c, textBadFormat)
	}
	if err := c.Send(what); err != nil {
		b.metrics.ObserveDelivery(string(rec.MediaKind), "send_error")
		logger.Warn(ctx, "bot", "delivery",
			slog.String("outcome", "send_error"),
			slog.String("code", rec.Code),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return tghelpers.SendText(c, textDeliveryFailed)
	}

	if _, err := b.store.Media().IncrementDownloads(ctx, rec.Code); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("bot: count media download: %w", err)
	}
	if err := b.store.Users().IncrementDownloads(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("bot: count user download: %w", err)
	}
	b.metrics.ObserveDelivery(string(rec.MediaKind), "ok")
	logger.Info(ctx, "bot", "delivery",
		slog.String("status", "ok"),
		slog.String("outcome", "ok"),
		slog.Int64("user_id", userID),
		slog.String("code", rec.Code),
		slog.String("media_kind", string(rec.MediaKind)),
	)
	return nil
}

func sendable(rec store.MediaRecord) (tele.Sendable, bool) {
	file := tele.File{FileID: rec.MediaRef}
	switch rec.MediaKind {
	case store.MediaVideo:
		return &tele.Video{File: file, Caption: rec.Caption}, true
	case store.MediaDocument:
		return &tele.Document{File: file, Caption: rec.Caption}, true
	case store.MediaAudio:
		return &tele.Audio{File: file, Caption: rec.Caption}, true
	}
	return nil, false
}

// attachmentOf extracts the message's file. Kinds the catalog cannot hold are
// still reported so the engine can reject them.
func attachmentOf(m *tele.Message) *conversation.Attachment {
	if m == nil {
		return nil
	}
	switch {
	case m.Video != nil:
		return &conversation.Attachment{Kind: store.MediaVideo, Ref: m.Video.FileID}
	case m.Document != nil:
		return &conversation.Attachment{Kind: store.MediaDocument, Ref: m.Document.FileID}
	case m.Audio != nil:
		return &conversation.Attachment{Kind: store.MediaAudio, Ref: m.Audio.FileID}
	case m.Photo != nil:
		return &conversation.Attachment{Kind: "photo", Ref: m.Photo.FileID}
	case m.Voice != nil:
		return &conversation.Attachment{Kind: "voice", Ref: m.Voice.FileID}
	case m.Animation != nil:
		return &conversation.Attachment{Kind: "animation", Ref: m.Animation.FileID}
	case m.VideoNote != nil:
		return &conversation.Attachment{Kind: "video_note", Ref: m.VideoNote.FileID}
	case m.Sticker != nil:
		return &conversation.Attachment{Kind: "sticker", Ref: m.Sticker.FileID}
	}
	return nil
}

// ignoreUnchanged drops Telegram's complaint about editing a message into
// identical content, which happens when the check button is pressed twice.
func ignoreUnchanged(err error) error {
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}
