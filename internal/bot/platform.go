package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/internal/conversation"
	"github.com/m3rciful/kinobot/internal/gate"
)

// ErrNotBound is returned by Platform calls made before Bind.
var ErrNotBound = errors.New("bot: platform not bound")

// ChatAPI is the subset of *tele.Bot the platform adapter calls.
type ChatAPI interface {
	ChatByID(id int64) (*tele.Chat, error)
	ChatByUsername(name string) (*tele.Chat, error)
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Platform adapts the Telegram Bot API to the gate and conversation
// interfaces. The bot is created inside the telegram runtime, so the API is
// bound late, from the start hook.
type Platform struct {
	mu  sync.RWMutex
	api ChatAPI
}

var (
	_ gate.MembershipLookup        = (*Platform)(nil)
	_ conversation.ChannelResolver = (*Platform)(nil)
)

// Bind sets the API used by later calls.
func (p *Platform) Bind(api ChatAPI) {
	p.mu.Lock()
	p.api = api
	p.mu.Unlock()
}

func (p *Platform) client() (ChatAPI, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.api == nil {
		return nil, ErrNotBound
	}
	return p.api, nil
}

// chatRef addresses a chat by its stored id string.
type chatRef string

func (r chatRef) Recipient() string { return string(r) }

// MemberStatus reports userID's status in the channel.
func (p *Platform) MemberStatus(ctx context.Context, channelID string, userID int64) (gate.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	api, err := p.client()
	if err != nil {
		return "", err
	}
	member, err := api.ChatMemberOf(chatRef(channelID), &tele.User{ID: userID})
	if err != nil {
		return "", err
	}
	return gate.Status(member.Role), nil
}

// ResolveChannel looks a channel up by handle or numeric id.
func (p *Platform) ResolveChannel(ctx context.Context, ref conversation.ChannelRef) (conversation.ResolvedChannel, error) {
	if err := ctx.Err(); err != nil {
		return conversation.ResolvedChannel{}, err
	}
	api, err := p.client()
	if err != nil {
		return conversation.ResolvedChannel{}, err
	}
	var chat *tele.Chat
	if ref.Username != "" {
		chat, err = api.ChatByUsername("@" + ref.Username)
	} else {
		chat, err = api.ChatByID(ref.ID)
	}
	if err != nil {
		return conversation.ResolvedChannel{}, err
	}
	return conversation.ResolvedChannel{
		ID:       strconv.FormatInt(chat.ID, 10),
		Username: chat.Username,
		Title:    chat.Title,
	}, nil
}

// Notify sends a plain text direct message.
func (p *Platform) Notify(userID int64, text string) error {
	api, err := p.client()
	if err != nil {
		return err
	}
	_, err = api.Send(&tele.User{ID: userID}, text)
	return err
}
