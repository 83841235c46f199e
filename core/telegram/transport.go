package telegram

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const defaultPollTimeout = 10 * time.Second

func pollTimeout(cfg *coreconfig.Config) time.Duration {
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultPollTimeout
}

// newPoller returns the update source selected by telegram.run_mode together
// with attrs describing it for the startup log.
func newPoller(cfg *coreconfig.Config) (tele.Poller, []slog.Attr) {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		listen := fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port)
		attrs := []slog.Attr{
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", listen),
			slog.String("public_url", cfg.Webhook.URL),
		}
		hook := &tele.Webhook{
			Listen:   listen,
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
		return hook, attrs
	}
	timeout := pollTimeout(cfg)
	return &tele.LongPoller{Timeout: timeout}, []slog.Attr{
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("poll_timeout", timeout),
	}
}

// newHTTPClient builds the Bot API client. Header and overall timeouts leave
// room for a full long-poll round.
func newHTTPClient(poll time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: poll + 10*time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   poll + 30*time.Second,
		Transport: &retryTransport{base: base, attempts: 3, backoff: 500 * time.Millisecond},
	}
}

// retryTransport repeats requests that failed before any response arrived
// with a transient network error. Requests whose body cannot be replayed are
// sent once.
type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 1; ; attempt++ {
		try := req
		if attempt > 1 {
			try = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				try.Body = body
			}
		}

		resp, err := t.base.RoundTrip(try)
		if err == nil || !replayable || attempt >= t.attempts || !netutil.Transient(err) {
			return resp, err
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
