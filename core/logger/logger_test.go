package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/kinobot/core/config"
)

func TestSettingsFrom(t *testing.T) {
	s := settingsFrom(nil)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, slog.LevelInfo, s.level)
	assert.Equal(t, "prod", s.profile)
	assert.Equal(t, [2]int{1, 50}, [2]int{s.sampleNum, s.sampleDen})

	s = settingsFrom(&coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Profile:     "Dev",
		Level:       "warning",
		KeysOrder:   "event, ,level",
		DebugSample: "0",
	}})
	assert.Equal(t, formatKV, s.format)
	assert.Equal(t, slog.LevelWarn, s.level)
	assert.Equal(t, []string{"event", "level"}, s.keyOrder)
	assert.Equal(t, [2]int{0, 0}, [2]int{s.sampleNum, s.sampleDen})

	s = settingsFrom(&coreconfig.Config{Logging: coreconfig.LoggingConfig{Profile: "debug", Format: "json", DebugSample: "3/4"}})
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, [2]int{3, 4}, [2]int{s.sampleNum, s.sampleDen})
}

func TestOpenSinks(t *testing.T) {
	sinks, closers, err := openSinks(coreconfig.LoggingConfig{})
	require.NoError(t, err)
	assert.Len(t, sinks, 1)
	assert.Empty(t, closers)

	dir := filepath.Join(t.TempDir(), "logs")
	sinks, closers, err = openSinks(coreconfig.LoggingConfig{Dir: dir, BotFile: "bot.log", ErrorsFile: "errors.log"})
	require.NoError(t, err)
	require.Len(t, sinks, 3)
	assert.False(t, sinks[1].errorsOnly)
	assert.True(t, sinks[2].errorsOnly)
	assert.NoError(t, closeAll(closers))
	assert.FileExists(t, filepath.Join(dir, "errors.log"))
}

func TestAsyncWriter_ErrorsOnlySink(t *testing.T) {
	all, errs := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter(4, sink{w: all}, sink{w: errs, errorsOnly: true}, sink{})
	require.NoError(t, w.Write([]byte("info\n"), false))
	require.NoError(t, w.Write([]byte("boom\n"), true))
	require.NoError(t, w.Write(nil, true))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	assert.Equal(t, "info\nboom\n", all.String())
	assert.Equal(t, "boom\n", errs.String())
}

func TestHelpersBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info(nil, "app", "noop")
		LogEvent(Background(), nil, slog.LevelError, "noop")
	})
}
