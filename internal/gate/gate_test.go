package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/kinobot/internal/store"
	"github.com/m3rciful/kinobot/internal/store/filestore"
)

func memoryStore(t *testing.T, owner int64) *filestore.Store {
	t.Helper()
	s, err := filestore.NewMemory(owner)
	require.NoError(t, err)
	return s
}

type fakeLookup struct {
	statuses map[string]Status
	errs     map[string]error
	calls    []string
}

func (f *fakeLookup) MemberStatus(_ context.Context, channelID string, _ int64) (Status, error) {
	f.calls = append(f.calls, channelID)
	if err, ok := f.errs[channelID]; ok {
		return "", err
	}
	return f.statuses[channelID], nil
}

type outcomes []string

func (o *outcomes) ObserveGate(outcome string) { *o = append(*o, outcome) }

func seedChannels(t *testing.T, st store.Store, ids ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		require.NoError(t, st.Channels().Put(context.Background(), store.ChannelRecord{
			ID: id, AddedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestCheckAllSubscribed_EmptyListPasses(t *testing.T) {
	st := memoryStore(t, 1)
	lookup := &fakeLookup{}
	g := New(st.Channels(), st.Users(), lookup, nil)

	for _, user := range []int64{1, 2, 99999} {
		ok, err := g.CheckAllSubscribed(context.Background(), user)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Empty(t, lookup.calls)
}

func TestCheckAllSubscribed_NonMemberFails(t *testing.T) {
	st := memoryStore(t, 1)
	seedChannels(t, st, "-1", "-2", "-3")
	lookup := &fakeLookup{
		statuses: map[string]Status{"-1": StatusMember, "-3": StatusLeft},
		errs:     map[string]error{"-2": errors.New("chat not found")},
	}
	var seen outcomes
	g := New(st.Channels(), st.Users(), lookup, &seen)

	ok, err := g.CheckAllSubscribed(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"-1", "-2", "-3"}, lookup.calls)
	assert.Equal(t, outcomes{"lookup_error", "fail"}, seen)
}

func TestCheckAllSubscribed_ShortCircuits(t *testing.T) {
	st := memoryStore(t, 1)
	seedChannels(t, st, "-1", "-2")
	lookup := &fakeLookup{statuses: map[string]Status{"-1": StatusKicked, "-2": StatusMember}}
	g := New(st.Channels(), st.Users(), lookup, nil)

	ok, err := g.CheckAllSubscribed(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"-1"}, lookup.calls)
}

func TestCheckAllSubscribed_ErrorsAreNeutral(t *testing.T) {
	st := memoryStore(t, 1)
	seedChannels(t, st, "-1", "-2")
	lookup := &fakeLookup{
		statuses: map[string]Status{"-2": StatusCreator},
		errs:     map[string]error{"-1": errors.New("bot is not a member")},
	}
	g := New(st.Channels(), st.Users(), lookup, nil)

	ok, err := g.CheckAllSubscribed(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_CachesVerdict(t *testing.T) {
	ctx := context.Background()
	st := memoryStore(t, 1)
	seedChannels(t, st, "-1")
	_, err := st.Users().Touch(ctx, 7, time.Now())
	require.NoError(t, err)

	lookup := &fakeLookup{statuses: map[string]Status{"-1": StatusAdministrator}}
	g := New(st.Channels(), st.Users(), lookup, nil)

	ok, err := g.Verify(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	rec, err := st.Users().Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, rec.IsSubscribed)

	lookup.statuses["-1"] = StatusLeft
	ok, err = g.Verify(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	rec, _ = st.Users().Get(ctx, 7)
	assert.False(t, rec.IsSubscribed)

	ok, err = g.Verify(ctx, 8)
	require.NoError(t, err, "unknown users are verified without a cache write")
	assert.False(t, ok)
}

func TestStatusSubscribed(t *testing.T) {
	for _, s := range []Status{StatusMember, StatusAdministrator, StatusCreator} {
		assert.True(t, s.Subscribed(), s)
	}
	for _, s := range []Status{StatusLeft, StatusKicked, StatusRestricted, ""} {
		assert.False(t, s.Subscribed(), s)
	}
}
