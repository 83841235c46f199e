package sender

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/kinobot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// RetryDelay decides whether a failed call is worth repeating and how long to
// wait first. Flood control waits the retry_after the API asked for; server
// errors and transient network failures back off linearly from base.
func RetryDelay(err error, attempt int, base time.Duration) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(max(flood.RetryAfter, 1)) * time.Second, true
	}
	if apiStatus(err) >= 500 || netutil.Transient(err) {
		return base * time.Duration(attempt), true
	}
	return 0, false
}

// ErrorKind names the failure class: flood, api_4xx, api_5xx or a network
// kind from netutil.
func ErrorKind(err error) string {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return "flood"
	}
	switch status := apiStatus(err); {
	case status >= 500:
		return "api_5xx"
	case status >= 400:
		return "api_4xx"
	}
	return netutil.Kind(err)
}

func outcomeOf(err error) string {
	var flood tele.FloodError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &flood):
		return OutcomeRateLimited
	}
	return OutcomeFail
}

// apiStatus extracts the Bot API error code. Errors telebot does not type
// still end in "(code)".
func apiStatus(err error) int {
	if err == nil {
		return 0
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return 400
	}

	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndexByte(msg, '(')
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}

// Redact renders err with any bot token masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
