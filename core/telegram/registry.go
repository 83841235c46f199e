package telegram

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Command is one slash command.
type Command struct {
	// Name includes the leading slash, e.g. "/start".
	Name        string
	Description string
	Handler     tele.HandlerFunc
	// AdminOnly commands are routed through the admin check and kept out of
	// the public command menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are extra names, with or without the slash. AddCommand stores
	// them normalized.
	Aliases []string
}

// Registry collects commands, callback handlers and fallbacks before the
// routes are built. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	commands  []Command
	index     map[string]int
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback fallback
// answers with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		index:     make(map[string]int),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// commandKey lowercases name, adds the slash and drops a "@botname" suffix
// and any arguments.
func commandKey(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == "/" {
		return ""
	}
	if name[0] != '/' {
		name = "/" + name
	}
	return strings.ToLower(name)
}

// AddCommand registers cmd under its name and aliases.
func (r *Registry) AddCommand(cmd Command) error {
	if cmd.Handler == nil || strings.TrimSpace(cmd.Description) == "" {
		return fmt.Errorf("telegram: command %q needs a handler and a description", cmd.Name)
	}
	if !strings.HasPrefix(cmd.Name, "/") {
		return fmt.Errorf("telegram: command %q must start with a slash", cmd.Name)
	}
	keys := []string{commandKey(cmd.Name)}
	for _, alias := range cmd.Aliases {
		keys = append(keys, commandKey(alias))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("telegram: command %q has an empty alias", cmd.Name)
		}
		if _, taken := r.index[k]; taken {
			return fmt.Errorf("telegram: command %s already registered", k)
		}
	}
	cmd.Name, cmd.Aliases = keys[0], keys[1:]
	r.commands = append(r.commands, cmd)
	for _, k := range keys {
		r.index[k] = len(r.commands) - 1
	}
	return nil
}

// Command resolves text such as "/Start@kinobot payload" to a registered
// command, aliases included.
func (r *Registry) Command(text string) (Command, bool) {
	key := commandKey(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[key]
	if !ok {
		return Command{}, false
	}
	return r.commands[i], true
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.commands...)
}

// MenuCommands lists the public commands for the client command menu.
func (r *Registry) MenuCommands() []tele.Command {
	var menu []tele.Command
	for _, cmd := range r.Commands() {
		if cmd.Hidden || cmd.AdminOnly {
			continue
		}
		menu = append(menu, tele.Command{Text: strings.TrimPrefix(cmd.Name, "/"), Description: cmd.Description})
	}
	return menu
}

// AddCallback maps a callback key to h.
func (r *Registry) AddCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return errors.New("telegram: callback needs a key and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.callbacks[key]; taken {
		return fmt.Errorf("telegram: callback %s already registered", key)
	}
	r.callbacks[key] = h
	return nil
}

// Callback returns the handler registered for key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackKeys returns the registered keys sorted.
func (r *Registry) CallbackKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys. Nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a known command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text that is not a known command.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}
