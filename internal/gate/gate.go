// Package gate decides whether a user is subscribed to every registered channel.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/internal/store"
)

// Status is a user's membership state in a channel.
type Status string

const (
	StatusCreator       Status = "creator"
	StatusAdministrator Status = "administrator"
	StatusMember        Status = "member"
	StatusRestricted    Status = "restricted"
	StatusLeft          Status = "left"
	StatusKicked        Status = "kicked"
)

// Subscribed reports whether the status counts as a subscription.
func (s Status) Subscribed() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	}
	return false
}

// MembershipLookup asks the chat platform for a user's status in a channel.
type MembershipLookup interface {
	MemberStatus(ctx context.Context, channelID string, userID int64) (Status, error)
}

// Observer receives gate outcomes: "pass", "fail" and "lookup_error".
type Observer interface {
	ObserveGate(outcome string)
}

// Gate evaluates subscriptions with live lookups. The cached
// UserRecord.IsSubscribed value is written but never consulted.
type Gate struct {
	channels store.Channels
	users    store.Users
	lookup   MembershipLookup
	observer Observer
}

// New builds a Gate. observer may be nil.
func New(channels store.Channels, users store.Users, lookup MembershipLookup, observer Observer) *Gate {
	return &Gate{channels: channels, users: users, lookup: lookup, observer: observer}
}

// Channels returns the registered channels in list order.
func (g *Gate) Channels(ctx context.Context) ([]store.ChannelRecord, error) {
	return g.channels.List(ctx)
}

// CheckAllSubscribed passes when the channel list is empty. Otherwise every
// channel is queried in list order and the first non-subscribed status fails
// the check. Lookup errors skip the channel. The returned error is only set
// when the channel list itself cannot be read.
func (g *Gate) CheckAllSubscribed(ctx context.Context, userID int64) (bool, error) {
	channels, err := g.channels.List(ctx)
	if err != nil {
		return false, fmt.Errorf("gate: list channels: %w", err)
	}
	for _, ch := range channels {
		status, err := g.lookup.MemberStatus(ctx, ch.ID, userID)
		if err != nil {
			g.observe("lookup_error")
			logger.Warn(ctx, "gate", "lookup.skip",
				slog.Int64("user_id", userID),
				slog.String("channel_id", ch.ID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			continue
		}
		if !status.Subscribed() {
			g.observe("fail")
			logger.Debug(ctx, "gate", "verdict",
				slog.String("outcome", "fail"),
				slog.Int64("user_id", userID),
				slog.String("channel_id", ch.ID),
				slog.String("member_status", string(status)),
			)
			return false, nil
		}
	}
	g.observe("pass")
	return true, nil
}

// Verify runs the check and caches the verdict on the user record. A failed
// cache write is logged and does not change the verdict.
func (g *Gate) Verify(ctx context.Context, userID int64) (bool, error) {
	ok, err := g.CheckAllSubscribed(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := g.users.SetSubscribed(ctx, userID, ok); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn(ctx, "gate", "cache.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
	return ok, nil
}

func (g *Gate) observe(outcome string) {
	if g.observer != nil {
		g.observer.ObserveGate(outcome)
	}
}
