package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/kinobot/core/telegram"
)

type stubContext struct {
	tele.Context
	upd       tele.Update
	values    map[string]interface{}
	responded int
}

func newStub(upd tele.Update) *stubContext {
	return &stubContext{upd: upd, values: map[string]interface{}{}}
}

func (s *stubContext) Update() tele.Update               { return s.upd }
func (s *stubContext) Chat() *tele.Chat                  { return nil }
func (s *stubContext) Callback() *tele.Callback          { return s.upd.Callback }
func (s *stubContext) Get(key string) interface{}        { return s.values[key] }
func (s *stubContext) Set(key string, value interface{}) { s.values[key] = value }

func (s *stubContext) Respond(...*tele.CallbackResponse) error {
	s.responded++
	return nil
}

func (s *stubContext) Sender() *tele.User {
	switch {
	case s.upd.Message != nil:
		return s.upd.Message.Sender
	case s.upd.Callback != nil:
		return s.upd.Callback.Sender
	}
	return nil
}

func (s *stubContext) Text() string {
	if s.upd.Message == nil {
		return ""
	}
	return s.upd.Message.Text
}

func text(userID int64, s string) *stubContext {
	return newStub(tele.Update{Message: &tele.Message{Sender: &tele.User{ID: userID}, Text: s}})
}

func routeFor(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

func testRegistry(t *testing.T, calls map[string]int) *tg.Registry {
	count := func(name string) tele.HandlerFunc {
		return func(tele.Context) error {
			calls[name]++
			return nil
		}
	}
	reg := tg.NewRegistry()
	require.NoError(t, reg.AddCommand(tg.Command{Name: "/start", Description: "Start", Handler: count("start"), Aliases: []string{"go"}}))
	require.NoError(t, reg.AddCommand(tg.Command{Name: "/panel", Description: "Panel", Handler: count("panel"), AdminOnly: true}))
	require.NoError(t, reg.AddCallback("check_sub", count("check_sub")))
	reg.SetTextFallback(count("text"))
	return reg
}

func TestCommandRoutes(t *testing.T) {
	calls := map[string]int{}
	reg := testRegistry(t, calls)
	routes := CommandRoutes(reg, CommandRouteOptions{
		IsAdmin: func(_ context.Context, id int64) bool { return id == 1 },
	})
	require.Len(t, routes, 3)

	require.NoError(t, routeFor(t, routes, "/go")(text(5, "/go")))
	require.NoError(t, routeFor(t, routes, "/panel")(text(5, "/panel")))
	require.NoError(t, routeFor(t, routes, "/panel")(text(1, "/panel")))
	assert.Equal(t, map[string]int{"start": 1, "panel": 1}, calls)
}

func TestMessageRoutes(t *testing.T) {
	calls := map[string]int{}
	reg := testRegistry(t, calls)
	var media int
	routes := MessageRoutes(reg, MessageOptions{Media: func(tele.Context) error {
		media++
		return nil
	}})
	require.Len(t, routes, len(MediaEndpoints)+1)

	h := routeFor(t, routes, tele.OnText)
	require.NoError(t, h(text(5, "/START@kinobot")))
	require.NoError(t, h(text(5, "/panel")))
	require.NoError(t, h(text(5, "1234")))
	assert.Equal(t, map[string]int{"start": 1, "text": 2}, calls)

	require.NoError(t, routeFor(t, routes, tele.OnDocument)(newStub(tele.Update{Message: &tele.Message{Document: &tele.Document{}}})))
	assert.Equal(t, 1, media)

	bare := MessageRoutes(nil, MessageOptions{})
	assert.NoError(t, routeFor(t, bare, tele.OnText)(text(5, "hi")))
	assert.NoError(t, routeFor(t, bare, tele.OnVideo)(newStub(tele.Update{Message: &tele.Message{Video: &tele.Video{}}})))
}

func TestCallbackRoute(t *testing.T) {
	calls := map[string]int{}
	reg := testRegistry(t, calls)
	h := CallbackRoute(reg, CallbackOptions{}).Handler

	known := newStub(tele.Update{Callback: &tele.Callback{Unique: "check_sub", Sender: &tele.User{ID: 5}}})
	require.NoError(t, h(known))
	assert.Equal(t, 1, calls["check_sub"])
	assert.Equal(t, 1, known.responded)

	unknown := newStub(tele.Update{Callback: &tele.Callback{Data: "\fstale|x", Sender: &tele.User{ID: 5}}})
	require.NoError(t, h(unknown))
	assert.Equal(t, 1, unknown.responded, "the registry fallback answers once")

	assert.NoError(t, h(newStub(tele.Update{})))
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "not found" }

type typedErr struct{}

func (*typedErr) Error() string { return "typed" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", errorCode(codedErr{}))
	assert.Equal(t, "INTERNAL", errorCode(errors.New("x")))
	assert.Equal(t, "TYPEDERR", errorCode(&typedErr{}))
	assert.Equal(t, "command.start", handlerName("command.", "/Start"))
	assert.Equal(t, "callback.unknown", handlerName("callback.", ""))
}
