// Package access classifies callers by the admin set and guards its mutations.
package access

import (
	"context"
	"log/slog"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/internal/store"
)

// Role is a caller's privilege level.
type Role int

const (
	Plain Role = iota
	Admin
	Owner
)

func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case Admin:
		return "admin"
	default:
		return "plain"
	}
}

// Privileged reports whether the role may use the admin panel.
func (r Role) Privileged() bool { return r >= Admin }

// Policy resolves roles against the admin set and a fixed owner.
type Policy struct {
	owner  int64
	admins store.Admins
}

// NewPolicy returns a Policy for the given owner id.
func NewPolicy(owner int64, admins store.Admins) *Policy {
	return &Policy{owner: owner, admins: admins}
}

// OwnerID returns the configured owner.
func (p *Policy) OwnerID() int64 { return p.owner }

// Classify returns Owner for the owner, Admin for admin set members and
// Plain otherwise. A lookup failure classifies as Plain.
func (p *Policy) Classify(ctx context.Context, id int64) Role {
	if id == p.owner {
		return Owner
	}
	ok, err := p.admins.Contains(ctx, id)
	if err != nil {
		logger.Warn(ctx, "access", "classify.fail",
			slog.Int64("user_id", id),
			slog.String("err", err.Error()),
		)
		return Plain
	}
	if ok {
		return Admin
	}
	return Plain
}

// Grant adds id to the admin set. It reports false when id is already present.
func (p *Policy) Grant(ctx context.Context, id int64) (bool, error) {
	ok, err := p.admins.Add(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		logger.Info(ctx, "access", "admin.granted", slog.Int64("target_id", id))
	}
	return ok, nil
}

// Revoke removes id from the admin set. It reports false when id is the
// owner or not a member.
func (p *Policy) Revoke(ctx context.Context, id int64) (bool, error) {
	if id == p.owner {
		return false, nil
	}
	ok, err := p.admins.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		logger.Info(ctx, "access", "admin.revoked", slog.Int64("target_id", id))
	}
	return ok, nil
}

// Admins lists the admin set in ascending order.
func (p *Policy) Admins(ctx context.Context) ([]int64, error) {
	return p.admins.List(ctx)
}
