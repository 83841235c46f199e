package conversation

import "strings"

// Reply keyboard labels. Incoming text equal to a label selects the action.
const (
	LabelUpload        = "🎬 Upload media"
	LabelChannels      = "📢 Channels"
	LabelAddChannel    = "➕ Add channel"
	LabelRemoveChannel = "➖ Remove channel"
	LabelManageAdmins  = "👑 Manage admins"
	LabelStats         = "📊 Statistics"
	LabelMediaList     = "📁 Media list"
	LabelDeleteMedia   = "🗑️ Delete media"
	LabelMainMenu      = "🔙 Main menu"

	LabelAddAdmin    = "➕ Add admin"
	LabelRemoveAdmin = "➖ Remove admin"
	LabelAdminList   = "📋 Admin list"
	LabelBackToPanel = "🔙 Back to panel"

	LabelCancel = "🔙 Cancel"
	LabelHelp   = "ℹ️ Help"

	// CommandCancel aborts a wizard like LabelCancel.
	CommandCancel = "/cancel"
)

// Action is a top-level admin menu entry.
type Action int

const (
	ActionNone Action = iota
	ActionUpload
	ActionChannels
	ActionAddChannel
	ActionRemoveChannel
	ActionManageAdmins
	ActionStats
	ActionMediaList
	ActionDeleteMedia
	ActionMainMenu
	ActionAddAdmin
	ActionRemoveAdmin
	ActionAdminList
	ActionBackToPanel
)

var actionLabels = map[string]Action{
	LabelUpload:        ActionUpload,
	LabelChannels:      ActionChannels,
	LabelAddChannel:    ActionAddChannel,
	LabelRemoveChannel: ActionRemoveChannel,
	LabelManageAdmins:  ActionManageAdmins,
	LabelStats:         ActionStats,
	LabelMediaList:     ActionMediaList,
	LabelDeleteMedia:   ActionDeleteMedia,
	LabelMainMenu:      ActionMainMenu,
	LabelAddAdmin:      ActionAddAdmin,
	LabelRemoveAdmin:   ActionRemoveAdmin,
	LabelAdminList:     ActionAdminList,
	LabelBackToPanel:   ActionBackToPanel,
}

// ActionFor returns the action bound to a button label.
func ActionFor(text string) (Action, bool) {
	a, ok := actionLabels[strings.TrimSpace(text)]
	return a, ok
}

// OwnerOnly reports whether only the owner may run the action.
func (a Action) OwnerOnly() bool {
	switch a {
	case ActionManageAdmins, ActionAddAdmin, ActionRemoveAdmin, ActionAdminList:
		return true
	}
	return false
}

// IsCancel reports whether text aborts the current wizard.
func IsCancel(text string) bool {
	text = strings.TrimSpace(text)
	return text == LabelCancel || text == CommandCancel
}
