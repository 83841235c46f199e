package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/store"
	"github.com/m3rciful/kinobot/internal/store/filestore"
)

func memoryStore(t *testing.T, owner int64) *filestore.Store {
	t.Helper()
	s, err := filestore.NewMemory(owner)
	require.NoError(t, err)
	return s
}

const (
	ownerID int64 = 100
	adminID int64 = 200
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeResolver struct {
	channels map[string]ResolvedChannel
	calls    int
}

func (f *fakeResolver) ResolveChannel(_ context.Context, ref ChannelRef) (ResolvedChannel, error) {
	f.calls++
	if ch, ok := f.channels[ref.String()]; ok {
		return ch, nil
	}
	return ResolvedChannel{}, errors.New("chat not found")
}

type commitLog []string

func (c *commitLog) ObserveCommit(wizard string) { *c = append(*c, wizard) }

type fixture struct {
	st       *filestore.Store
	engine   *Engine
	resolver *fakeResolver
	commits  *commitLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOver(t, nil)
}

// newFixtureOver lets wrap put a layer between the engine and the memory
// store. The fixture's st stays the unwrapped store.
func newFixtureOver(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()
	st := memoryStore(t, ownerID)
	var backend store.Store = st
	if wrap != nil {
		backend = wrap(st)
	}
	policy := access.NewPolicy(ownerID, backend.Admins())
	_, err := policy.Grant(context.Background(), adminID)
	require.NoError(t, err)

	resolver := &fakeResolver{channels: map[string]ResolvedChannel{
		"@films":         {ID: "-1001", Username: "films", Title: "Films"},
		"-1002":          {ID: "-1002", Title: "Private"},
		"@series_portal": {ID: "-1003", Username: "series_portal", Title: "Series"},
	}}
	commits := &commitLog{}
	e, err := New(Options{
		Store:    backend,
		Policy:   policy,
		Resolver: resolver,
		Observer: commits,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &fixture{st: st, engine: e, resolver: resolver, commits: commits}
}

func (f *fixture) send(t *testing.T, user int64, text string) Reply {
	t.Helper()
	return f.do(t, Input{UserID: user, Role: f.role(user), Text: text})
}

func (f *fixture) attach(t *testing.T, user int64, kind store.MediaKind, ref string) Reply {
	t.Helper()
	return f.do(t, Input{UserID: user, Role: f.role(user), Attachment: &Attachment{Kind: kind, Ref: ref}})
}

func (f *fixture) do(t *testing.T, in Input) Reply {
	t.Helper()
	r, err := f.engine.Handle(context.Background(), in)
	require.NoError(t, err)
	return r
}

func (f *fixture) role(user int64) access.Role {
	return f.engine.policy.Classify(context.Background(), user)
}

func (f *fixture) seedChannels(t *testing.T, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, f.st.Channels().Put(context.Background(), store.ChannelRecord{
			ID: id, DisplayName: "ch" + id, AddedAt: fixedNow.Add(time.Duration(i) * time.Minute),
		}))
	}
}

type snapshot struct {
	admins   []int64
	media    []store.MediaRecord
	channels []store.ChannelRecord
	users    int
}

func (f *fixture) snapshot(t *testing.T) snapshot {
	t.Helper()
	ctx := context.Background()
	var (
		s   snapshot
		err error
	)
	s.admins, err = f.st.Admins().List(ctx)
	require.NoError(t, err)
	s.media, err = f.st.Media().List(ctx)
	require.NoError(t, err)
	s.channels, err = f.st.Channels().List(ctx)
	require.NoError(t, err)
	s.users, err = f.st.Users().Count(ctx)
	require.NoError(t, err)
	return s
}

func TestUploadWizard_CommitsRecord(t *testing.T) {
	f := newFixture(t)

	r := f.send(t, adminID, LabelUpload)
	assert.Equal(t, MenuCancel, r.Menu)
	assert.Equal(t, StateUploadCode, f.engine.State(adminID))

	f.send(t, adminID, "42")
	assert.Equal(t, StateUploadMedia, f.engine.State(adminID))

	f.attach(t, adminID, store.MediaDocument, "doc-file-id")
	assert.Equal(t, StateUploadCaption, f.engine.State(adminID))

	r = f.send(t, adminID, "Test")
	assert.Equal(t, MenuPanel, r.Menu)
	assert.Equal(t, StateIdle, f.engine.State(adminID))

	recs, err := f.st.Media().List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "42", rec.Code)
	assert.Equal(t, "doc-file-id", rec.MediaRef)
	assert.Equal(t, store.MediaDocument, rec.MediaKind)
	assert.Equal(t, "Test", rec.Caption)
	assert.Equal(t, adminID, rec.UploaderID)
	assert.Equal(t, fixedNow, rec.UploadedAt)
	assert.Zero(t, rec.DownloadCount)
	assert.Equal(t, commitLog{"upload"}, *f.commits)
}

func TestUploadWizard_RejectsWrongInputWithoutAdvancing(t *testing.T) {
	f := newFixture(t)
	f.send(t, ownerID, LabelUpload)

	r := f.attach(t, ownerID, store.MediaVideo, "early")
	assert.Equal(t, textCodeFirst, r.Text)
	assert.Equal(t, StateUploadCode, f.engine.State(ownerID))

	f.send(t, ownerID, "15")
	f.send(t, ownerID, "not a file")
	assert.Equal(t, StateUploadMedia, f.engine.State(ownerID))

	r = f.attach(t, ownerID, store.MediaKind("photo"), "photo-id")
	assert.Equal(t, textUnsupportedMedia, r.Text)
	assert.Equal(t, StateUploadMedia, f.engine.State(ownerID))

	f.attach(t, ownerID, store.MediaVideo, "video-id")
	f.attach(t, ownerID, store.MediaAudio, "second-file")
	assert.Equal(t, StateUploadCaption, f.engine.State(ownerID))

	f.send(t, ownerID, NoCaption)
	rec, err := f.st.Media().Get(context.Background(), "15")
	require.NoError(t, err)
	assert.Equal(t, "video-id", rec.MediaRef)
	assert.Empty(t, rec.Caption)
}

func TestUploadWizard_ReuploadOverwrites(t *testing.T) {
	f := newFixture(t)
	for _, ref := range []string{"first", "second"} {
		f.send(t, adminID, LabelUpload)
		f.send(t, adminID, "15")
		f.attach(t, adminID, store.MediaVideo, ref)
		f.send(t, adminID, "caption "+ref)
	}
	n, _ := f.st.Media().Count(context.Background())
	assert.Equal(t, 1, n)
	rec, err := f.st.Media().Get(context.Background(), "15")
	require.NoError(t, err)
	assert.Equal(t, "second", rec.MediaRef)
}

func TestChannelRemove_BySelector(t *testing.T) {
	f := newFixture(t)
	f.seedChannels(t, "-1", "-2")

	r := f.send(t, adminID, LabelRemoveChannel)
	assert.Contains(t, r.Text, "1. ch-1")
	assert.Contains(t, r.Text, "2. ch-2")
	assert.Equal(t, StateChannelRemove, f.engine.State(adminID))

	r = f.send(t, adminID, "5")
	assert.Equal(t, "❌ Send a number from 1 to 2.", r.Text)
	assert.Equal(t, StateChannelRemove, f.engine.State(adminID))
	channels, _ := f.st.Channels().List(context.Background())
	assert.Len(t, channels, 2)

	f.send(t, adminID, "2")
	assert.Equal(t, StateIdle, f.engine.State(adminID))
	channels, _ = f.st.Channels().List(context.Background())
	require.Len(t, channels, 1)
	assert.Equal(t, "-1", channels[0].ID)
}

func TestChannelRemove_ByLiteral(t *testing.T) {
	f := newFixture(t)
	f.seedChannels(t, "-1")
	require.NoError(t, f.st.Channels().Put(context.Background(), store.ChannelRecord{
		ID: "-9", Username: "Films", AddedAt: fixedNow.Add(time.Hour),
	}))

	f.send(t, adminID, LabelRemoveChannel)
	f.send(t, adminID, "@films")
	_, err := f.st.Channels().Get(context.Background(), "-9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.send(t, adminID, LabelRemoveChannel)
	r := f.send(t, adminID, "-777")
	assert.Equal(t, textChannelNotFound, r.Text)
	assert.Equal(t, StateIdle, f.engine.State(adminID))

	f.send(t, adminID, LabelRemoveChannel)
	f.send(t, adminID, "-1")
	channels, _ := f.st.Channels().List(context.Background())
	assert.Empty(t, channels)
}

func TestChannelRemove_EmptyListStartsNoWizard(t *testing.T) {
	f := newFixture(t)
	r := f.send(t, adminID, LabelRemoveChannel)
	assert.Equal(t, textNoChannels, r.Text)
	assert.Equal(t, StateIdle, f.engine.State(adminID))
}

func TestChannelAdd(t *testing.T) {
	f := newFixture(t)
	f.send(t, adminID, LabelAddChannel)

	r := f.send(t, adminID, "films channel")
	assert.Equal(t, textBadChannelRef, r.Text)
	assert.Equal(t, StateChannelAddRef, f.engine.State(adminID))
	assert.Zero(t, f.resolver.calls)

	r = f.send(t, adminID, "@unknown_channel")
	assert.Contains(t, r.Text, "@unknown_channel")
	assert.Equal(t, StateChannelAddRef, f.engine.State(adminID))

	r = f.send(t, adminID, "@films")
	assert.Contains(t, r.Text, "Films")
	assert.Equal(t, StateIdle, f.engine.State(adminID))

	f.send(t, adminID, LabelAddChannel)
	f.send(t, adminID, "-1002")

	channels, err := f.st.Channels().List(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "films", channels[0].Username)
	assert.Equal(t, "Private", channels[1].DisplayName)
	assert.Equal(t, commitLog{"channel_add", "channel_add"}, *f.commits)
}

func TestCancel_FromEveryWizardLeavesStoreUntouched(t *testing.T) {
	entries := []struct {
		name  string
		user  int64
		steps []string
	}{
		{"upload code", adminID, []string{LabelUpload}},
		{"upload media", adminID, []string{LabelUpload, "77"}},
		{"channel add", adminID, []string{LabelAddChannel}},
		{"channel remove", adminID, []string{LabelRemoveChannel}},
		{"admin add", ownerID, []string{LabelAddAdmin}},
		{"admin remove", ownerID, []string{LabelRemoveAdmin}},
		{"media delete", adminID, []string{LabelDeleteMedia}},
	}
	for _, cancel := range []string{LabelCancel, CommandCancel} {
		for _, tc := range entries {
			t.Run(tc.name+" "+cancel, func(t *testing.T) {
				f := newFixture(t)
				f.seedChannels(t, "-1")
				require.NoError(t, f.st.Media().Put(context.Background(), store.MediaRecord{Code: "1", MediaKind: store.MediaVideo}))
				before := f.snapshot(t)

				for _, s := range tc.steps {
					f.send(t, tc.user, s)
				}
				require.NotEqual(t, StateIdle, f.engine.State(tc.user))

				r := f.send(t, tc.user, cancel)
				assert.Equal(t, textCancelled, r.Text)
				assert.Equal(t, MenuPanel, r.Menu)
				assert.Equal(t, StateIdle, f.engine.State(tc.user))
				assert.Equal(t, before, f.snapshot(t))
			})
		}
	}

	t.Run("upload caption", func(t *testing.T) {
		f := newFixture(t)
		before := f.snapshot(t)
		f.send(t, adminID, LabelUpload)
		f.send(t, adminID, "9")
		f.attach(t, adminID, store.MediaVideo, "v")
		require.Equal(t, StateUploadCaption, f.engine.State(adminID))
		f.send(t, adminID, LabelCancel)
		assert.Equal(t, before, f.snapshot(t))
		assert.Empty(t, *f.commits)
	})
}

func TestMenuEntryOverwritesWizard(t *testing.T) {
	f := newFixture(t)
	f.send(t, adminID, LabelUpload)
	f.send(t, adminID, "42")

	f.send(t, adminID, LabelAddChannel)
	assert.Equal(t, StateChannelAddRef, f.engine.State(adminID))

	f.send(t, adminID, LabelStats)
	assert.Equal(t, StateIdle, f.engine.State(adminID))
}

func TestOwnerOnlyActionsRejectAdmins(t *testing.T) {
	f := newFixture(t)
	f.send(t, adminID, LabelUpload)

	for _, label := range []string{LabelManageAdmins, LabelAddAdmin, LabelRemoveAdmin, LabelAdminList} {
		r := f.send(t, adminID, label)
		assert.Equal(t, textOwnerOnly, r.Text, label)
		assert.Equal(t, StateUploadCode, f.engine.State(adminID), "session untouched after %s", label)
	}
}

func TestAdminAddWizard(t *testing.T) {
	f := newFixture(t)

	f.send(t, ownerID, LabelAddAdmin)
	r := f.send(t, ownerID, "abc")
	assert.Equal(t, textAdminIDDigits, r.Text)
	assert.Equal(t, StateAdminAddID, f.engine.State(ownerID))

	r = f.send(t, ownerID, "100")
	assert.Equal(t, textAdminSelf, r.Text)
	assert.Equal(t, StateAdminAddID, f.engine.State(ownerID))

	r = f.send(t, ownerID, "200")
	assert.Contains(t, r.Text, "already an admin")
	assert.Equal(t, StateIdle, f.engine.State(ownerID))

	f.send(t, ownerID, LabelAddAdmin)
	r = f.send(t, ownerID, "300")
	assert.Equal(t, MenuAdmins, r.Menu)
	assert.Equal(t, StateIdle, f.engine.State(ownerID))
	assert.Equal(t, access.Admin, f.role(300))
}

func TestAdminRemoveWizard(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.policy.Grant(context.Background(), 300)
	require.NoError(t, err)

	r := f.send(t, ownerID, LabelRemoveAdmin)
	assert.Contains(t, r.Text, "1. 100 (owner)")
	assert.Contains(t, r.Text, "2. 200")
	assert.Contains(t, r.Text, "3. 300")

	f.send(t, ownerID, "x")
	assert.Equal(t, StateAdminRemove, f.engine.State(ownerID))
	r = f.send(t, ownerID, "4")
	assert.Equal(t, "❌ Send a number from 1 to 3.", r.Text)
	assert.Equal(t, StateAdminRemove, f.engine.State(ownerID))

	r = f.send(t, ownerID, "1")
	assert.Equal(t, textOwnerNotRemovable, r.Text)
	assert.Equal(t, StateIdle, f.engine.State(ownerID))
	assert.Equal(t, access.Owner, f.role(ownerID))

	f.send(t, ownerID, LabelRemoveAdmin)
	f.send(t, ownerID, "3")
	assert.Equal(t, access.Plain, f.role(300))
	assert.Equal(t, StateIdle, f.engine.State(ownerID))
}

func TestAdminRemove_OnlyOwner(t *testing.T) {
	st := memoryStore(t, ownerID)
	e, err := New(Options{Store: st, Policy: access.NewPolicy(ownerID, st.Admins()), Resolver: &fakeResolver{}})
	require.NoError(t, err)

	r, err := e.Handle(context.Background(), Input{UserID: ownerID, Role: access.Owner, Text: LabelRemoveAdmin})
	require.NoError(t, err)
	assert.Equal(t, textOnlyOwner, r.Text)
	assert.Equal(t, StateIdle, e.State(ownerID))
}

func TestMediaDeleteWizard(t *testing.T) {
	f := newFixture(t)
	r := f.send(t, adminID, LabelDeleteMedia)
	assert.Equal(t, textNoMedia, r.Text)
	assert.Equal(t, StateIdle, f.engine.State(adminID))

	require.NoError(t, f.st.Media().Put(context.Background(), store.MediaRecord{
		Code: "42", MediaKind: store.MediaAudio, Caption: "Song", DownloadCount: 3,
	}))
	r = f.send(t, adminID, LabelDeleteMedia)
	assert.Contains(t, r.Text, "42: Song")

	r = f.send(t, adminID, "43")
	assert.Contains(t, r.Text, "43")
	assert.Equal(t, StateIdle, f.engine.State(adminID))

	f.send(t, adminID, LabelDeleteMedia)
	r = f.send(t, adminID, "42")
	assert.Contains(t, r.Text, "Downloads: 3")
	n, _ := f.st.Media().Count(context.Background())
	assert.Zero(t, n)
}

var errDiskFull = errors.New("disk full")

// brokenStore serves reads from the wrapped store and, once broken is set,
// fails every write.
type brokenStore struct {
	store.Store
	broken bool
}

func (b *brokenStore) Admins() store.Admins     { return brokenAdmins{b.Store.Admins(), b} }
func (b *brokenStore) Media() store.Media       { return brokenMedia{b.Store.Media(), b} }
func (b *brokenStore) Channels() store.Channels { return brokenChannels{b.Store.Channels(), b} }

type brokenAdmins struct {
	store.Admins
	b *brokenStore
}

func (a brokenAdmins) Add(ctx context.Context, id int64) (bool, error) {
	if a.b.broken {
		return false, errDiskFull
	}
	return a.Admins.Add(ctx, id)
}

func (a brokenAdmins) Remove(ctx context.Context, id int64) (bool, error) {
	if a.b.broken {
		return false, errDiskFull
	}
	return a.Admins.Remove(ctx, id)
}

type brokenMedia struct {
	store.Media
	b *brokenStore
}

func (m brokenMedia) Put(ctx context.Context, rec store.MediaRecord) error {
	if m.b.broken {
		return errDiskFull
	}
	return m.Media.Put(ctx, rec)
}

func (m brokenMedia) Delete(ctx context.Context, code string) (store.MediaRecord, error) {
	if m.b.broken {
		return store.MediaRecord{}, errDiskFull
	}
	return m.Media.Delete(ctx, code)
}

type brokenChannels struct {
	store.Channels
	b *brokenStore
}

func (c brokenChannels) Put(ctx context.Context, rec store.ChannelRecord) error {
	if c.b.broken {
		return errDiskFull
	}
	return c.Channels.Put(ctx, rec)
}

func (c brokenChannels) Delete(ctx context.Context, id string) (store.ChannelRecord, error) {
	if c.b.broken {
		return store.ChannelRecord{}, errDiskFull
	}
	return c.Channels.Delete(ctx, id)
}

func TestWizards_StorageFailureEndsWizard(t *testing.T) {
	cases := []struct {
		wizard string
		user   int64
		steps  []Input
		commit Input
	}{
		{
			wizard: "upload",
			user:   adminID,
			steps: []Input{
				{Text: LabelUpload},
				{Text: "77"},
				{Attachment: &Attachment{Kind: store.MediaVideo, Ref: "v"}},
			},
			commit: Input{Text: "Caption"},
		},
		{wizard: "channel_add", user: adminID, steps: []Input{{Text: LabelAddChannel}}, commit: Input{Text: "@films"}},
		{wizard: "channel_remove", user: adminID, steps: []Input{{Text: LabelRemoveChannel}}, commit: Input{Text: "1"}},
		{wizard: "admin_add", user: ownerID, steps: []Input{{Text: LabelAddAdmin}}, commit: Input{Text: "400"}},
		{wizard: "admin_remove", user: ownerID, steps: []Input{{Text: LabelRemoveAdmin}}, commit: Input{Text: "3"}},
		{wizard: "media_delete", user: adminID, steps: []Input{{Text: LabelDeleteMedia}}, commit: Input{Text: "42"}},
	}
	for _, tc := range cases {
		t.Run(tc.wizard, func(t *testing.T) {
			broken := &brokenStore{}
			f := newFixtureOver(t, func(st store.Store) store.Store {
				broken.Store = st
				return broken
			})
			ctx := context.Background()
			f.seedChannels(t, "-1")
			require.NoError(t, f.st.Media().Put(ctx, store.MediaRecord{Code: "42", MediaKind: store.MediaVideo}))
			_, err := f.engine.policy.Grant(ctx, 300)
			require.NoError(t, err)
			before := f.snapshot(t)

			for _, in := range tc.steps {
				in.UserID, in.Role = tc.user, f.role(tc.user)
				f.do(t, in)
			}
			require.NotEqual(t, StateIdle, f.engine.State(tc.user))

			broken.broken = true
			in := tc.commit
			in.UserID, in.Role = tc.user, f.role(tc.user)
			r, err := f.engine.Handle(ctx, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, errDiskFull)
			assert.Contains(t, err.Error(), tc.wizard)
			assert.Zero(t, r)
			assert.Equal(t, StateIdle, f.engine.State(tc.user))
			assert.Empty(t, *f.commits)
			assert.Equal(t, before, f.snapshot(t))
		})
	}
}

func TestStatisticsAndLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, code := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, f.st.Media().Put(ctx, store.MediaRecord{
			Code: code, MediaKind: store.MediaVideo, DownloadCount: int64(i), UploadedAt: fixedNow,
		}))
	}
	_, err := f.st.Users().Touch(ctx, 5, fixedNow)
	require.NoError(t, err)

	r := f.send(t, adminID, LabelStats)
	assert.Contains(t, r.Text, "🎬 Media: 6")
	assert.Contains(t, r.Text, "👥 Users: 1")
	assert.Contains(t, r.Text, "👑 Admins: 2")
	assert.Contains(t, r.Text, "📥 Downloads: 15")
	assert.Contains(t, r.Text, "1. f: 5")
	assert.Contains(t, r.Text, "5. b: 1")
	assert.NotContains(t, r.Text, "6. a")

	r = f.send(t, adminID, LabelMediaList)
	assert.Contains(t, r.Text, "1. Code: a")

	r = f.send(t, ownerID, LabelAdminList)
	assert.Contains(t, r.Text, "100 (owner)")
	assert.Equal(t, MenuAdmins, r.Menu)
}

func TestIdleHintsAndRoles(t *testing.T) {
	f := newFixture(t)

	r := f.send(t, adminID, "hello")
	assert.Equal(t, textPanelHint, r.Text)

	r = f.attach(t, adminID, store.MediaVideo, "v")
	assert.Equal(t, textAttachmentIdle, r.Text)

	r = f.send(t, ownerID, LabelBackToPanel)
	assert.Contains(t, r.Text, "Owner")
	assert.Equal(t, f.engine.Greeting(access.Admin), f.send(t, adminID, LabelMainMenu))

	_, err := f.engine.Handle(context.Background(), Input{UserID: 1, Role: access.Plain, Text: LabelUpload})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestParseChannelRef(t *testing.T) {
	ref, err := ParseChannelRef(" @films_hd ")
	require.NoError(t, err)
	assert.Equal(t, "films_hd", ref.Username)

	ref, err = ParseChannelRef("-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), ref.ID)
	assert.Equal(t, "-1001234567890", ref.String())

	for _, bad := range []string{"", "@", "@ab", "films", "0", "@1abc"} {
		_, err := ParseChannelRef(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "VALIDATION", ErrorCode(errors.Join(errors.New("x"), ErrValidation)))
	assert.Equal(t, "NOT_FOUND", ErrorCode(ErrNotFound))
	assert.Equal(t, "INTERNAL", ErrorCode(errors.New("disk full")))
	assert.Empty(t, ErrorCode(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "фил…", truncate("фильм", 3))
}
