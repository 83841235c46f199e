// Package state provides a per-user session manager for Telegram conversations.
// Sessions carry a State tag plus caller-defined wizard data, and the manager
// serialises the updates of one user so a conversation step never overlaps
// another step of the same user.
package state
