package logger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// fields is one record flattened to dotted keys.
type fields map[string]any

// set stores v under key unless it is nil or an empty string.
func (f fields) set(key string, v any) {
	switch x := v.(type) {
	case nil:
		return
	case string:
		if x == "" {
			return
		}
	}
	f[key] = v
}

func (f fields) str(key string) string {
	s, _ := f[key].(string)
	return s
}

// lineHandler is a slog.Handler writing each record as one flat line of
// key=value pairs or a JSON object. Keys listed in keyOrder come first, the
// rest follow alphabetically.
type lineHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	groups []string
}

func newLineHandler(cfg handlerConfig) *lineHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &lineHandler{cfg: cfg, rank: rank}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	f := make(fields, 16)
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	f["level"] = levelName(r.Level)
	if isJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		h.collect(f, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(f, a)
		return true
	})
	addContextFields(ctx, f)

	if rid := f.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if _, seen := f["rid_full"]; isJSON && !seen {
				f["rid_full"] = rid
			}
			f["rid"] = short
		}
	}
	if f.str("event") == "" {
		f["event"] = cmp.Or(r.Message, "unknown")
	}
	if f.str("component") == "" {
		f["component"] = "app"
	}
	normalizeEnums(f)

	keys := h.sortKeys(f)
	var line []byte
	if isJSON {
		var err error
		if line, err = encodeJSON(f, keys); err != nil {
			return err
		}
	} else {
		line = encodeKV(f, keys)
	}
	return h.cfg.writer.Write(append(line, '\n'), r.Level >= slog.LevelError)
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clip(h.attrs), attrs...)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

// sortKeys orders keys by rank, unranked keys last and alphabetical.
func (h *lineHandler) sortKeys(f fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ra, okA := h.rank[a]
		rb, okB := h.rank[b]
		switch {
		case okA && okB:
			return ra - rb
		case okA:
			return -1
		case okB:
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}

func (h *lineHandler) collect(f fields, attr slog.Attr) {
	walkAttr(strings.Join(h.groups, "."), attr, func(key string, v slog.Value) {
		if key == "" {
			return
		}
		k, val := attrValue(key, v)
		f.set(k, val)
	})
}

// walkAttr calls fn for every leaf of attr with group keys joined by dots.
func walkAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	if prefix != "" {
		key = strings.TrimSuffix(prefix+"."+key, ".")
	}
	val := attr.Value.Resolve()
	if val.Kind() != slog.KindGroup {
		fn(key, val)
		return
	}
	for _, child := range val.Group() {
		walkAttr(key, child, fn)
	}
}

// durationField renders d in whole milliseconds under a key ending in _ms.
func durationField(key string, d time.Duration) (string, int64) {
	ms := max(d, 0).Round(time.Millisecond).Milliseconds()
	switch {
	case key == "duration":
		return "duration_ms", ms
	case strings.HasSuffix(key, "_ms"):
		return key, ms
	}
	return key + "_ms", ms
}

// attrValue converts v to a JSON-friendly scalar, renaming duration keys.
func attrValue(key string, v slog.Value) (string, any) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String())
	case slog.KindBool:
		return key, v.Bool()
	case slog.KindInt64:
		return key, v.Int64()
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u)
		}
		return key, v.Uint64()
	case slog.KindFloat64:
		return key, v.Float64()
	case slog.KindDuration:
		return durationField(key, v.Duration())
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano)
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil
	case error:
		return key, x.Error()
	case string:
		return key, strings.TrimSpace(x)
	case time.Duration:
		return durationField(key, x)
	case fmt.Stringer:
		return key, x.String()
	default:
		return key, fmt.Sprint(x)
	}
}

func encodeJSON(f fields, keys []string) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, key := range keys {
		data, err := json.Marshal(f[key])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", key, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, key)
		buf = append(buf, ':')
		buf = append(buf, data...)
	}
	return append(buf, '}'), nil
}

func encodeKV(f fields, keys []string) []byte {
	buf := make([]byte, 0, 256)
	for i, key := range keys {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, key...)
		buf = append(buf, '=')
		s := fmt.Sprint(f[key])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	}
	return buf
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// addContextFields copies update metadata carried by ctx. Explicit attrs with
// the same key win.
func addContextFields(ctx context.Context, f fields) {
	if ctx == nil {
		return
	}
	fill := func(key string, v any) {
		if _, ok := f[key]; !ok {
			f.set(key, v)
		}
	}
	fill("rid", RIDFrom(ctx))
	fill("handler", HandlerFrom(ctx))
	for key, id := range map[string]int64{
		"update_id": int64(UpdateIDFrom(ctx)),
		"user_id":   UserIDFrom(ctx),
		"chat_id":   ChatIDFrom(ctx),
	} {
		if id != 0 {
			fill(key, id)
		}
	}
}
