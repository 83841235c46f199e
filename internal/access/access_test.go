package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/kinobot/internal/store/filestore"
)

func memoryStore(t *testing.T, owner int64) *filestore.Store {
	t.Helper()
	s, err := filestore.NewMemory(owner)
	require.NoError(t, err)
	return s
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	st := memoryStore(t, 1)
	p := NewPolicy(1, st.Admins())

	_, err := p.Grant(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, Owner, p.Classify(ctx, 1))
	assert.Equal(t, Admin, p.Classify(ctx, 2))
	assert.Equal(t, Plain, p.Classify(ctx, 3))
	assert.True(t, Owner.Privileged())
	assert.False(t, Plain.Privileged())
	assert.Equal(t, "admin", Admin.String())
}

func TestGrantRevoke(t *testing.T) {
	ctx := context.Background()
	p := NewPolicy(1, memoryStore(t, 1).Admins())

	ok, err := p.Grant(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Grant(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok, "re-grant must report no change")

	ok, err = p.Revoke(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "owner cannot be revoked")

	ok, err = p.Revoke(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Revoke(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := p.Admins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
	assert.Equal(t, Plain, p.Classify(ctx, 5))
}
