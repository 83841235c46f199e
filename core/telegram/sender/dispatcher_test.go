package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type observed struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *observed) add(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, action+"/"+outcome)
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	obs := &observed{}
	d := New(Options{Workers: 1, Attempts: 3, Backoff: time.Millisecond, Observe: obs.add})

	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), Job{Action: "send.text", Run: func() error {
		calls++
		if calls < 3 {
			return &tele.Error{Code: 502, Description: "Bad Gateway"}
		}
		return nil
	}}))
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Zero(t, d.Failures())
	assert.Equal(t, []string{"send.text/ok"}, obs.outcomes)
}

func TestDispatcher_PermanentFailureIsNotRetried(t *testing.T) {
	obs := &observed{}
	d := New(Options{Workers: 2, Backoff: time.Millisecond, Observe: obs.add})

	calls := 0
	require.NoError(t, d.Enqueue(nil, Job{Action: "send.media", ChatID: -100, Run: func() error {
		calls++
		return &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	}}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, d.Failures())
	assert.Equal(t, []string{"send.media/fail"}, obs.outcomes)
}

func TestDispatcher_KeepsPerChatOrder(t *testing.T) {
	d := New(Options{Workers: 4, QueueSize: 32})
	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 20; i++ {
		chat := int64(i%3 + 1)
		seq := i
		require.NoError(t, d.Enqueue(context.Background(), Job{Action: "send.text", ChatID: chat, Run: func() error {
			mu.Lock()
			defer mu.Unlock()
			got[chat] = append(got[chat], seq)
			return nil
		}}))
	}
	d.Close()

	for chat, seqs := range got {
		assert.IsIncreasing(t, seqs, "chat %d", chat)
	}
	assert.Len(t, got, 3)
}

func TestDispatcher_QueueLimits(t *testing.T) {
	release := make(chan struct{})
	d := New(Options{Workers: 1, QueueSize: 1})
	block := Job{Action: "block", Run: func() error { <-release; return nil }}

	require.NoError(t, d.Enqueue(context.Background(), block))
	assert.Eventually(t, func() bool {
		return d.Enqueue(context.Background(), Job{Action: "fill", Run: func() error { return nil }}) == nil
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Enqueue(context.Background(), Job{Action: "over", Run: func() error { return nil }}), ErrQueueFull)
	assert.Error(t, d.Enqueue(context.Background(), Job{Action: "nil"}))

	close(release)
	d.Close()
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), block), ErrQueueClosed)
}

func TestRetryDelay(t *testing.T) {
	delay, ok := RetryDelay(tele.FloodError{RetryAfter: 7}, 1, time.Second)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, delay)

	delay, ok = RetryDelay(&tele.Error{Code: 500}, 2, time.Second)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)

	_, ok = RetryDelay(&net.OpError{Op: "dial", Err: errors.New("refused")}, 1, time.Second)
	assert.True(t, ok)

	_, ok = RetryDelay(&tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, 1, time.Second)
	assert.False(t, ok)
}

func TestErrorKindAndOutcome(t *testing.T) {
	assert.Equal(t, "flood", ErrorKind(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "api_5xx", ErrorKind(&tele.Error{Code: 503}))
	assert.Equal(t, "api_4xx", ErrorKind(fmt.Errorf("telegram: message is not modified (400)")))
	assert.Equal(t, "other", ErrorKind(errors.New("no code here")))

	assert.Equal(t, OutcomeOK, outcomeOf(nil))
	assert.Equal(t, OutcomeRateLimited, outcomeOf(fmt.Errorf("wrapped: %w", tele.FloodError{RetryAfter: 1})))
	assert.Equal(t, OutcomeFail, outcomeOf(errors.New("x")))
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-secret_token/sendMessage": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, Redact(err))
	assert.Empty(t, Redact(nil))
}
