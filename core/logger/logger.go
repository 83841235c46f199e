// Package logger renders structured single-line events for the bot. Lines
// are written asynchronously to stdout and, optionally, to files.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/kinobot/core/buildinfo"
	coreconfig "github.com/m3rciful/kinobot/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
	queueSize        = 1024
)

var (
	mu          sync.Mutex
	initialized bool
	closed      bool
	out         *asyncWriter
	files       []io.Closer

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(defaultSampleNum, defaultSampleDen)

	// L is the process logger. It stays nil until InitLogger succeeds; use the
	// package helpers, which are nil-safe, instead of calling it directly.
	L *slog.Logger
)

// settings is the resolved logging section of the config.
type settings struct {
	format    logFormat
	level     slog.Level
	keyOrder  []string
	sampleNum int
	sampleDen int
	profile   string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		format:    formatJSON,
		level:     slog.LevelInfo,
		keyOrder:  append([]string(nil), defaultKeyOrder...),
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.keyOrder = order
		}
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		num, den := parseRatioSpec(spec)
		switch {
		case num == 0 && den == 0:
			s.sampleNum, s.sampleDen = 0, 0
		case num > 0 && den > 0:
			s.sampleNum, s.sampleDen = num, den
		}
	}
	return s
}

// openSinks returns stdout plus the optional bot and errors files under dir.
func openSinks(lc coreconfig.LoggingConfig) ([]sink, []io.Closer, error) {
	sinks := []sink{{w: os.Stdout}}
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		return sinks, nil, nil
	}

	var closers []io.Closer
	targets := []struct {
		name       string
		errorsOnly bool
	}{
		{strings.TrimSpace(lc.BotFile), false},
		{strings.TrimSpace(lc.ErrorsFile), true},
	}
	for _, t := range targets {
		if t.name == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, closers, fmt.Errorf("logger: create log dir %s: %w", dir, err)
		}
		path := filepath.Join(dir, t.name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closers, fmt.Errorf("logger: open %s: %w", path, err)
		}
		sinks = append(sinks, sink{w: f, errorsOnly: t.errorsOnly})
		closers = append(closers, f)
	}
	return sinks, closers, nil
}

// InitLogger installs the process logger. Calls after the first successful
// one are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}

	s := settingsFrom(cfg)
	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}
	sinks, closers, err := openSinks(lc)
	if err != nil {
		closeAll(closers)
		return err
	}

	levelVar.Set(s.level)
	debugSampler.Set(s.sampleNum, s.sampleDen)
	files = closers
	out = newAsyncWriter(queueSize, sinks...)
	L = slog.New(newLineHandler(handlerConfig{
		level:    &levelVar,
		writer:   out,
		format:   s.format,
		keyOrder: s.keyOrder,
	}))
	slog.SetDefault(L)
	initialized = true

	attrs := []slog.Attr{
		slog.String("go_version", runtime.Version()),
		slog.String("version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("storage", cfg.Storage.Driver))
	}
	LogEvent(context.Background(), L.With("component", "app"), slog.LevelInfo, "startup", attrs...)
	return nil
}

// Shutdown flushes buffered output and closes log files. It is idempotent.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if closed || out == nil {
		return nil
	}
	closed = true

	var errs []error
	if err := out.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := out.Close(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, closeAll(files))
	return errors.Join(errs...)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Background is context.Background, kept short for call sites without an update.
func Background() context.Context {
	return context.Background()
}

// LogEvent writes one event through logg, falling back to the context logger
// and then to L. It does nothing before InitLogger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		logg = L
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs an event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		if logg = FromContext(ctx); logg != nil && component != "" {
			logg = logg.With("component", component)
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// SampleDebug reports whether a high-volume debug event should be written.
// LOG_TRACE=1 lets every event through.
func SampleDebug() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_TRACE"))) {
	case "1", "true", "on", "yes":
		return true
	}
	return debugSampler.Allow()
}

// Since is time.Since rounded to whole milliseconds.
func Since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
