package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/kinobot/internal/store"
)

const topN = 5

const (
	textGreeting       = "👋 Welcome, %s!\nUse the panel below to manage the bot."
	textCancelled      = "❌ Action cancelled."
	textPanelHint      = "ℹ️ Use the panel buttons below."
	textAttachmentIdle = "ℹ️ To add media press " + LabelUpload + " first."
	textOwnerOnly      = "⛔ Only the owner can do this."

	textAskCode          = "🎬 Send the code for the new media item."
	textCodeFirst        = "❌ Send the code first."
	textCodeAccepted     = "✅ Code accepted: %s\nNow send the file as a video, document or audio."
	textAskMedia         = "📎 Send the file as a video, document or audio."
	textUnsupportedMedia = "❌ Unsupported file type. Send a video, document or audio."
	textAskCaption       = "✅ File received.\nNow send a caption, or \"" + NoCaption + "\" for none."

	textAskChannelRef   = "📢 Send the channel as @username or numeric id (for example -1001234567890).\nThe bot must be an administrator of the channel."
	textBadChannelRef   = "❌ That is not a channel reference. Send @username or a numeric id."
	textResolveFailed   = "❌ Could not get info for %s. Check the reference and that the bot is a channel administrator, then try again."
	textNoChannels      = "📢 No channels have been added yet."
	textChannelNotFound = "❌ Channel not found."
	textChannelRemoved  = "✅ Channel removed: %s"
	textBadPosition     = "❌ Send a number from 1 to %d."

	textAdminMenu         = "👑 Admin management"
	textAskAdminID        = "👤 Send the numeric Telegram id of the new admin."
	textAdminIDDigits     = "❌ The id must contain digits only."
	textAdminSelf         = "❌ You cannot add yourself."
	textAdminIsOwner      = "❌ The owner is always an admin."
	textAdminExists       = "ℹ️ %d is already an admin."
	textAdminAdded        = "✅ %d is now an admin."
	textOnlyOwner         = "👑 There are no admins besides the owner."
	textOwnerNotRemovable = "❌ The owner cannot be removed."
	textAdminGone         = "❌ %d is not an admin."
	textAdminRemoved      = "✅ %d is no longer an admin."

	textNoMedia       = "🎬 No media has been uploaded yet."
	textAskDeleteCode = "🗑️ Send the code of the media item to delete."
	textMediaNotFound = "❌ No media with code %s."
)

const timeLayout = "2006-01-02 15:04"

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func captionOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func channelName(ch store.ChannelRecord) string {
	if ch.DisplayName != "" {
		return ch.DisplayName
	}
	if h := ch.Handle(); h != "" {
		return h
	}
	return ch.ID
}

func channelListView(channels []store.ChannelRecord) string {
	if len(channels) == 0 {
		return textNoChannels
	}
	var b strings.Builder
	b.WriteString("📢 Channels:\n")
	for i, ch := range channels {
		fmt.Fprintf(&b, "\n%d. %s\n   ID: %s\n", i+1, channelName(ch), ch.ID)
		if h := ch.Handle(); h != "" {
			fmt.Fprintf(&b, "   Username: %s\n", h)
		}
	}
	return b.String()
}

func channelRemoveView(channels []store.ChannelRecord) string {
	var b strings.Builder
	b.WriteString("➖ Remove a channel. Send its number, id or @username:\n\n")
	for i, ch := range channels {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, channelName(ch), ch.ID)
	}
	return b.String()
}

func channelAddedView(ch store.ChannelRecord) string {
	username := ch.Handle()
	if username == "" {
		username = "none"
	}
	return fmt.Sprintf("✅ Channel added.\nName: %s\nID: %s\nUsername: %s", channelName(ch), ch.ID, username)
}

func adminListView(ids []int64, owner int64) string {
	var b strings.Builder
	b.WriteString("📋 Admins:\n\n")
	for i, id := range ids {
		fmt.Fprintf(&b, "%d. %d", i+1, id)
		if id == owner {
			b.WriteString(" (owner)")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func adminRemoveView(ids []int64, owner int64) string {
	return "➖ Send the number of the admin to remove.\n\n" + adminListView(ids, owner)
}

func uploadSavedView(rec store.MediaRecord) string {
	return fmt.Sprintf("✅ Media saved.\nCode: %s\nCaption: %s", rec.Code, captionOr(rec.Caption, "none"))
}

func mediaListView(recs []store.MediaRecord) string {
	if len(recs) == 0 {
		return textNoMedia
	}
	var b strings.Builder
	b.WriteString("🎬 Media catalog:\n")
	for i, rec := range recs {
		fmt.Fprintf(&b, "\n%d. Code: %s\n   Caption: %s\n   Uploaded: %s\n   Downloads: %d\n",
			i+1, rec.Code,
			truncate(captionOr(rec.Caption, "none"), 50),
			rec.UploadedAt.Format(timeLayout),
			rec.DownloadCount,
		)
	}
	return b.String()
}

func mediaDeleteView(recs []store.MediaRecord) string {
	var b strings.Builder
	b.WriteString(textAskDeleteCode + "\n\n")
	for i, rec := range recs {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, rec.Code, truncate(captionOr(rec.Caption, "none"), 30))
	}
	return b.String()
}

func mediaDeletedView(rec store.MediaRecord) string {
	return fmt.Sprintf("✅ Media deleted.\nCode: %s\nKind: %s\nCaption: %s\nDownloads: %d",
		rec.Code, rec.MediaKind, truncate(captionOr(rec.Caption, "none"), 50), rec.DownloadCount)
}

type statistics struct {
	media     int
	channels  int
	users     int
	admins    int
	downloads int64
	top       []store.MediaRecord
}

func statisticsView(s statistics) string {
	var b strings.Builder
	b.WriteString("📊 Bot statistics:\n\n")
	fmt.Fprintf(&b, "🎬 Media: %d\n", s.media)
	fmt.Fprintf(&b, "📢 Channels: %d\n", s.channels)
	fmt.Fprintf(&b, "👥 Users: %d\n", s.users)
	fmt.Fprintf(&b, "👑 Admins: %d\n", s.admins)
	fmt.Fprintf(&b, "📥 Downloads: %d\n", s.downloads)
	if len(s.top) > 0 {
		b.WriteString("\n🏆 Most downloaded:\n")
		for i, rec := range s.top {
			fmt.Fprintf(&b, "%d. %s: %d\n", i+1, rec.Code, rec.DownloadCount)
		}
	}
	return b.String()
}
