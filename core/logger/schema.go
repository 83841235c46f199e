package logger

import (
	"log/slog"
	"strings"
)

// levelName maps a record level onto one of the four names dashboards
// filter on. Levels between the named ones round down.
func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// outcomes is the closed set for the outcome key.
var outcomes = map[string]bool{
	"ok":           true,
	"fail":         true,
	"cancelled":    true,
	"rate_limited": true,
	"not_found":    true,
	"bad_kind":     true,
	"send_error":   true,
	"rejected":     true,
}

// normalizeEnums lowercases status and outcome. Outcomes outside the closed
// set are dropped.
func normalizeEnums(f fields) {
	if s, ok := f["status"].(string); ok {
		f["status"] = strings.ToLower(s)
	}
	if o, ok := f["outcome"].(string); ok {
		if o = strings.ToLower(o); outcomes[o] {
			f["outcome"] = o
		} else {
			delete(f, "outcome")
		}
	}
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"operation",
	"cb_key",
	"outcome",
	"duration_ms",
	"role",
	"wizard",
	"state",
	"next_state",
	"code",
	"media_kind",
	"channel_id",
	"member_status",
	"target_id",
	"collection",
	"path",
	"messages",
	"kb",
	"count",
	"mode",
	"listen",
	"addr",
	"public_url",
	"http_code",
	"db",
	"host",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"pending_count",
}
