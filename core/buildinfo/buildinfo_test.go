package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromVCS(t *testing.T) {
	prevCommit, prevDate := Commit, Date
	t.Cleanup(func() { Commit, Date = prevCommit, prevDate })

	Commit, Date = "local", ""
	fillFromVCS([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	})
	assert.Equal(t, "0123456789ab", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)

	Commit = "stamped"
	fillFromVCS([]debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}})
	assert.Equal(t, "stamped", Commit)
}
