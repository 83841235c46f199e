package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistry_Commands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddCommand(Command{Name: "/start", Description: "Start", Handler: noop, Aliases: []string{"begin"}}))
	require.NoError(t, reg.AddCommand(Command{Name: "/panel", Description: "Panel", Handler: noop, AdminOnly: true}))
	require.NoError(t, reg.AddCommand(Command{Name: "/debug", Description: "Debug", Handler: noop, Hidden: true}))

	assert.ErrorContains(t, reg.AddCommand(Command{Name: "/Start", Description: "again", Handler: noop}), "already registered")
	assert.ErrorContains(t, reg.AddCommand(Command{Name: "/x", Description: "x", Handler: noop, Aliases: []string{"/begin"}}), "already registered")
	assert.ErrorContains(t, reg.AddCommand(Command{Name: "help", Description: "Help", Handler: noop}), "slash")
	assert.Error(t, reg.AddCommand(Command{Name: "/nodesc", Handler: noop}))

	for _, text := range []string{"/start", "/START@kinobot", "/start deep-link", "/begin", "begin"} {
		cmd, ok := reg.Command(text)
		require.True(t, ok, text)
		assert.Equal(t, "/start", cmd.Name, text)
	}
	_, ok := reg.Command("/")
	assert.False(t, ok)

	names := make([]string, 0, 3)
	for _, cmd := range reg.Commands() {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"/start", "/panel", "/debug"}, names)
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Start"}}, reg.MenuCommands())
}

func TestRegistry_Callbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddCallback("check_sub", noop))
	assert.Error(t, reg.AddCallback("check_sub", noop))
	assert.Error(t, reg.AddCallback("", noop))
	require.NoError(t, reg.AddCallback("a_first", noop))

	_, ok := reg.Callback("check_sub")
	assert.True(t, ok)
	_, ok = reg.Callback("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a_first", "check_sub"}, reg.CallbackKeys())

	assert.NotNil(t, reg.CallbackNotFound())
	reg.SetCallbackNotFound(nil)
	assert.NotNil(t, reg.CallbackNotFound())

	assert.Nil(t, reg.TextFallback())
	reg.SetTextFallback(noop)
	assert.NotNil(t, reg.TextFallback())
}

func TestRegistry_AliasesNormalized(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddCommand(Command{Name: "/Help", Description: "Help", Handler: noop, Aliases: []string{" Info "}}))
	cmd, ok := reg.Command("/info")
	require.True(t, ok)
	assert.Equal(t, "/help", cmd.Name)
	assert.Equal(t, []string{"/info"}, cmd.Aliases)
}
