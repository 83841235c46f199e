package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ChannelRef is a channel reference typed by an admin: a public handle or a numeric chat id.
type ChannelRef struct {
	Username string
	ID       int64
}

func (r ChannelRef) String() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return strconv.FormatInt(r.ID, 10)
}

// ResolvedChannel is what the chat platform reports about a channel.
type ResolvedChannel struct {
	ID       string
	Username string
	Title    string
}

// ChannelResolver fetches channel info from the chat platform.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, ref ChannelRef) (ResolvedChannel, error)
}

var handleRe = regexp.MustCompile(`^@([A-Za-z][A-Za-z0-9_]{3,31})$`)

// ParseChannelRef accepts "@handle" or a signed integer chat id.
func ParseChannelRef(text string) (ChannelRef, error) {
	text = strings.TrimSpace(text)
	if m := handleRe.FindStringSubmatch(text); m != nil {
		return ChannelRef{Username: m[1]}, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id == 0 {
		return ChannelRef{}, fmt.Errorf("%w: %q is neither @handle nor chat id", ErrValidation, text)
	}
	return ChannelRef{ID: id}, nil
}
