// Package conversation runs the admin panel: menu actions and the multi-step
// wizards that upload media and manage channels, admins and the catalog.
// One Handle call consumes exactly one inbound message.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/state"
	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/store"
)

// Wizard states.
const (
	StateIdle            = state.StateIdle
	StateUploadCode      = state.State("upload.code")
	StateUploadMedia     = state.State("upload.media")
	StateUploadCaption   = state.State("upload.caption")
	StateChannelAddRef   = state.State("channel_add.ref")
	StateChannelRemove   = state.State("channel_remove.selector")
	StateAdminAddID      = state.State("admin_add.id")
	StateAdminRemove     = state.State("admin_remove.selector")
	StateMediaDeleteCode = state.State("media_delete.code")
)

// NoCaption is the caption input that stores an empty caption.
const NoCaption = "."

// Draft is the per-user scratch data of an in-progress wizard.
type Draft struct {
	Code      string
	MediaRef  string
	MediaKind store.MediaKind

	// Snapshots taken on wizard entry; positional selectors index into them.
	Channels []store.ChannelRecord
	Admins   []int64
}

// Session is a user's conversation session.
type Session = state.Session[Draft]

// Attachment is an inbound file. Kind may name an undeliverable type such as "photo".
type Attachment struct {
	Kind store.MediaKind
	Ref  string
}

// Input is one inbound message from a privileged user.
type Input struct {
	UserID     int64
	Role       access.Role
	Text       string
	Attachment *Attachment
}

// Menu selects the reply keyboard sent with a reply.
type Menu int

const (
	// MenuNone leaves the current keyboard in place.
	MenuNone Menu = iota
	// MenuPanel is the role's admin panel.
	MenuPanel
	// MenuAdmins is the owner's admin management submenu.
	MenuAdmins
	// MenuCancel shows only the cancel button.
	MenuCancel
)

// Reply is the engine's answer to one input.
type Reply struct {
	Text string
	Menu Menu
}

// Observer receives the name of every committed wizard.
type Observer interface {
	ObserveCommit(wizard string)
}

// Options wires an Engine.
type Options struct {
	Store    store.Store
	Policy   *access.Policy
	Resolver ChannelResolver
	Sessions state.Manager[Draft]
	Observer Observer
	Now      func() time.Time
}

type stepFunc func(ctx context.Context, in Input, sess Session) (Reply, error)

// Engine is the admin conversation state machine.
type Engine struct {
	store    store.Store
	policy   *access.Policy
	resolver ChannelResolver
	sessions state.Manager[Draft]
	observer Observer
	now      func() time.Time

	steps map[state.State]stepFunc
}

// New validates opts and builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Policy == nil || opts.Resolver == nil {
		return nil, errors.New("conversation: store, policy and resolver are required")
	}
	if opts.Sessions == nil {
		opts.Sessions = state.NewMemoryManager[Draft]()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		store:    opts.Store,
		policy:   opts.Policy,
		resolver: opts.Resolver,
		sessions: opts.Sessions,
		observer: opts.Observer,
		now:      opts.Now,
	}
	e.steps = map[state.State]stepFunc{
		StateUploadCode:      e.stepUploadCode,
		StateUploadMedia:     e.stepUploadMedia,
		StateUploadCaption:   e.stepUploadCaption,
		StateChannelAddRef:   e.stepChannelAdd,
		StateChannelRemove:   e.stepChannelRemove,
		StateAdminAddID:      e.stepAdminAdd,
		StateAdminRemove:     e.stepAdminRemove,
		StateMediaDeleteCode: e.stepMediaDelete,
	}
	return e, nil
}

// Sessions exposes the session manager so the dispatcher can serialise users.
func (e *Engine) Sessions() state.Manager[Draft] { return e.sessions }

// State returns the user's current wizard state.
func (e *Engine) State(userID int64) state.State {
	return e.sessions.Get(userID).State
}

// Reset drops any in-progress wizard of the user.
func (e *Engine) Reset(userID int64) { e.sessions.Clear(userID) }

// Greeting is the panel greeting shown on /start and on returning to the panel.
func (e *Engine) Greeting(role access.Role) Reply {
	title := "Admin"
	if role == access.Owner {
		title = "Owner"
	}
	return Reply{Text: fmt.Sprintf(textGreeting, title), Menu: MenuPanel}
}

// Handle consumes one input. Menu labels and cancel take priority over the
// active wizard; everything else feeds the current step. Validation and
// not-found outcomes become replies; the returned error is reserved for
// storage failures and non-privileged callers.
func (e *Engine) Handle(ctx context.Context, in Input) (Reply, error) {
	if !in.Role.Privileged() {
		return Reply{}, fmt.Errorf("conversation: user %d: %w", in.UserID, ErrForbidden)
	}

	if in.Attachment == nil {
		if IsCancel(in.Text) {
			return e.cancel(ctx, in), nil
		}
		if act, ok := ActionFor(in.Text); ok {
			return e.runAction(ctx, in, act)
		}
	}

	sess := e.sessions.Get(in.UserID)
	step, ok := e.steps[sess.State]
	if sess.Idle() || !ok {
		if !sess.Idle() {
			e.sessions.Clear(in.UserID)
		}
		return e.idle(in), nil
	}
	return step(ctx, in, sess)
}

func (e *Engine) cancel(ctx context.Context, in Input) Reply {
	prev := e.sessions.Get(in.UserID).State
	e.sessions.Clear(in.UserID)
	logger.Debug(ctx, "conversation", "wizard.cancel",
		slog.Int64("user_id", in.UserID),
		slog.String("state", string(prev)),
	)
	return Reply{Text: textCancelled, Menu: MenuPanel}
}

func (e *Engine) idle(in Input) Reply {
	if in.Attachment != nil {
		return Reply{Text: textAttachmentIdle, Menu: MenuPanel}
	}
	return Reply{Text: textPanelHint, Menu: MenuPanel}
}

// advance moves the user to next and logs the transition.
func (e *Engine) advance(ctx context.Context, in Input, sess Session, next state.State) {
	logger.Debug(ctx, "conversation", "wizard.step",
		slog.Int64("user_id", in.UserID),
		slog.String("state", string(sess.State)),
		slog.String("next_state", string(next)),
	)
	sess.State = next
	e.sessions.Set(in.UserID, sess)
}

// reject logs a classified step failure. With stay the session is kept so
// the user can retry; otherwise the wizard ends.
func (e *Engine) reject(ctx context.Context, in Input, sess Session, err error, stay bool, reply Reply) (Reply, error) {
	next := sess.State
	if !stay {
		next = StateIdle
		e.sessions.Clear(in.UserID)
	}
	logger.Info(ctx, "conversation", "wizard.reject",
		slog.Int64("user_id", in.UserID),
		slog.String("state", string(sess.State)),
		slog.String("next_state", string(next)),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", ErrorCode(err)),
	)
	return reply, nil
}

// commit ends the wizard after a successful mutation.
func (e *Engine) commit(ctx context.Context, in Input, wizard string, attrs ...slog.Attr) {
	e.sessions.Clear(in.UserID)
	if e.observer != nil {
		e.observer.ObserveCommit(wizard)
	}
	logger.Info(ctx, "conversation", "wizard.commit",
		append([]slog.Attr{
			slog.String("status", "ok"),
			slog.String("wizard", wizard),
			slog.Int64("user_id", in.UserID),
		}, attrs...)...,
	)
}

// fail ends the wizard on a storage error and hands the error to the caller.
func (e *Engine) fail(in Input, wizard string, err error) (Reply, error) {
	e.sessions.Clear(in.UserID)
	return Reply{}, fmt.Errorf("conversation: %s: %w", wizard, err)
}

func (e *Engine) runAction(ctx context.Context, in Input, act Action) (Reply, error) {
	if act.OwnerOnly() && in.Role != access.Owner {
		logger.Info(ctx, "conversation", "action.reject",
			slog.Int64("user_id", in.UserID),
			slog.String("role", in.Role.String()),
			slog.String("err_code", ErrorCode(ErrForbidden)),
		)
		return Reply{Text: textOwnerOnly, Menu: MenuPanel}, nil
	}

	e.sessions.Clear(in.UserID)
	start := func(next state.State, draft Draft) {
		e.advance(ctx, in, Session{State: StateIdle, Data: draft}, next)
	}

	switch act {
	case ActionUpload:
		start(StateUploadCode, Draft{})
		return Reply{Text: textAskCode, Menu: MenuCancel}, nil

	case ActionChannels:
		channels, err := e.store.Channels().List(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: channelListView(channels), Menu: MenuPanel}, nil

	case ActionAddChannel:
		start(StateChannelAddRef, Draft{})
		return Reply{Text: textAskChannelRef, Menu: MenuCancel}, nil

	case ActionRemoveChannel:
		channels, err := e.store.Channels().List(ctx)
		if err != nil {
			return Reply{}, err
		}
		if len(channels) == 0 {
			return Reply{Text: textNoChannels, Menu: MenuPanel}, nil
		}
		start(StateChannelRemove, Draft{Channels: channels})
		return Reply{Text: channelRemoveView(channels), Menu: MenuCancel}, nil

	case ActionManageAdmins:
		return Reply{Text: textAdminMenu, Menu: MenuAdmins}, nil

	case ActionAddAdmin:
		start(StateAdminAddID, Draft{})
		return Reply{Text: textAskAdminID, Menu: MenuCancel}, nil

	case ActionRemoveAdmin:
		ids, err := e.policy.Admins(ctx)
		if err != nil {
			return Reply{}, err
		}
		if len(ids) <= 1 {
			return Reply{Text: textOnlyOwner, Menu: MenuAdmins}, nil
		}
		start(StateAdminRemove, Draft{Admins: ids})
		return Reply{Text: adminRemoveView(ids, e.policy.OwnerID()), Menu: MenuCancel}, nil

	case ActionAdminList:
		ids, err := e.policy.Admins(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: adminListView(ids, e.policy.OwnerID()), Menu: MenuAdmins}, nil

	case ActionStats:
		return e.stats(ctx)

	case ActionMediaList:
		recs, err := e.store.Media().List(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: mediaListView(recs), Menu: MenuPanel}, nil

	case ActionDeleteMedia:
		recs, err := e.store.Media().List(ctx)
		if err != nil {
			return Reply{}, err
		}
		if len(recs) == 0 {
			return Reply{Text: textNoMedia, Menu: MenuPanel}, nil
		}
		start(StateMediaDeleteCode, Draft{})
		return Reply{Text: mediaDeleteView(recs), Menu: MenuCancel}, nil

	case ActionMainMenu, ActionBackToPanel:
		return e.Greeting(in.Role), nil
	}
	return e.idle(in), nil
}

func (e *Engine) stats(ctx context.Context) (Reply, error) {
	var (
		s   statistics
		err error
	)
	if s.media, err = e.store.Media().Count(ctx); err != nil {
		return Reply{}, err
	}
	channels, err := e.store.Channels().List(ctx)
	if err != nil {
		return Reply{}, err
	}
	s.channels = len(channels)
	if s.users, err = e.store.Users().Count(ctx); err != nil {
		return Reply{}, err
	}
	admins, err := e.policy.Admins(ctx)
	if err != nil {
		return Reply{}, err
	}
	s.admins = len(admins)
	if s.downloads, err = e.store.Media().TotalDownloads(ctx); err != nil {
		return Reply{}, err
	}
	if s.top, err = e.store.Media().Top(ctx, topN); err != nil {
		return Reply{}, err
	}
	return Reply{Text: statisticsView(s), Menu: MenuPanel}, nil
}

func trimmed(in Input) string { return strings.TrimSpace(in.Text) }
