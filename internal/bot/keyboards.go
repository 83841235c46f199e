package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/telegram/keyboard"
	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/conversation"
	"github.com/m3rciful/kinobot/internal/store"
)

// CallbackCheckSubscription is the unique key of the "I have subscribed" button.
const CallbackCheckSubscription = "check_subscription"

const labelSubscribed = "✅ I have subscribed"

func ownerPanel() *tele.ReplyMarkup {
	return keyboard.Reply(
		[]string{conversation.LabelUpload, conversation.LabelChannels},
		[]string{conversation.LabelAddChannel, conversation.LabelRemoveChannel},
		[]string{conversation.LabelManageAdmins, conversation.LabelStats},
		[]string{conversation.LabelMediaList, conversation.LabelDeleteMedia},
		[]string{conversation.LabelMainMenu},
	)
}

func adminPanel() *tele.ReplyMarkup {
	return keyboard.Reply(
		[]string{conversation.LabelUpload, conversation.LabelChannels},
		[]string{conversation.LabelAddChannel, conversation.LabelRemoveChannel},
		[]string{conversation.LabelStats, conversation.LabelMediaList},
		[]string{conversation.LabelDeleteMedia, conversation.LabelMainMenu},
	)
}

func adminsMenu() *tele.ReplyMarkup {
	return keyboard.Reply(
		[]string{conversation.LabelAddAdmin},
		[]string{conversation.LabelRemoveAdmin},
		[]string{conversation.LabelAdminList},
		[]string{conversation.LabelBackToPanel},
	)
}

func cancelMenu() *tele.ReplyMarkup {
	return keyboard.Reply([]string{conversation.LabelCancel})
}

func userMenu() *tele.ReplyMarkup {
	return keyboard.Reply([]string{conversation.LabelHelp})
}

// panelFor returns the panel keyboard of a privileged role.
func panelFor(role access.Role) *tele.ReplyMarkup {
	if role == access.Owner {
		return ownerPanel()
	}
	return adminPanel()
}

// markupFor maps an engine reply menu to a keyboard. MenuNone keeps the current one.
func markupFor(role access.Role, menu conversation.Menu) *tele.ReplyMarkup {
	switch menu {
	case conversation.MenuPanel:
		return panelFor(role)
	case conversation.MenuAdmins:
		return adminsMenu()
	case conversation.MenuCancel:
		return cancelMenu()
	}
	return nil
}

// channelURL links to the public handle, falling back to the raw id for
// private channels.
func channelURL(ch store.ChannelRecord) string {
	if ch.Username != "" {
		return "https://t.me/" + ch.Username
	}
	return "https://t.me/" + ch.ID
}

// subscriptionMenu lists one link per channel followed by the re-check button.
func subscriptionMenu(channels []store.ChannelRecord) *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, 0, len(channels)+1)
	for _, ch := range channels {
		name := ch.DisplayName
		if name == "" {
			name = "Channel"
		}
		buttons = append(buttons, keyboard.Link("📢 "+name, channelURL(ch)))
	}
	buttons = append(buttons, keyboard.Action(labelSubscribed, CallbackCheckSubscription))
	return keyboard.Column(buttons...)
}
