// Package sender runs outbound Bot API calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/kinobot/core/logger"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the target worker's queue is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Send outcomes passed to Options.Observe.
const (
	OutcomeOK          = "ok"
	OutcomeFail        = "fail"
	OutcomeRateLimited = "rate_limited"
)

// Options controls the dispatcher. Zero values select defaults.
type Options struct {
	// QueueSize bounds each worker's backlog.
	QueueSize int
	Workers   int
	// Attempts is the total number of tries per job, first one included.
	Attempts int
	// Backoff is multiplied by the attempt number between tries unless the
	// API names its own retry_after.
	Backoff time.Duration
	// MaxDuration bounds the time one job may spend retrying.
	MaxDuration time.Duration
	// Observe, when set, receives every finished job.
	Observe func(action, outcome string)
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 30 * time.Second
	}
	return o
}

// Job is one outbound call. Run must be safe to repeat.
type Job struct {
	Action string
	// ChatID pins the job to a worker so replies to one chat keep their order.
	ChatID int64
	Run    func() error

	ctx context.Context
}

// Dispatcher executes jobs on a fixed set of workers. Jobs for the same chat
// always land on the same worker and run in enqueue order.
type Dispatcher struct {
	opts   Options
	queues []chan Job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	failures atomic.Uint64
}

// New starts the workers.
func New(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan Job, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan Job, opts.QueueSize)
		go d.work(d.queues[i])
	}
	return d
}

// Enqueue schedules j without blocking.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	j.ctx = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queues[d.shard(j.ChatID)] <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(chatID int64) int {
	return int(uint64(chatID) % uint64(len(d.queues)))
}

// Failures returns the number of jobs that ended in error.
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

// Close rejects new jobs, drains the queues and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(queue <-chan Job) {
	defer d.wg.Done()
	for j := range queue {
		attempts, err := d.run(j)
		outcome := outcomeOf(err)
		if err != nil {
			d.failures.Add(1)
			logger.Error(j.ctx, "tg.sender", "send.fail",
				slog.String("action", j.Action),
				slog.String("outcome", outcome),
				slog.String("err", Redact(err)),
				slog.String("cause", ErrorKind(err)),
				slog.Int("attempts", attempts),
			)
		} else if attempts > 1 {
			logger.Info(j.ctx, "tg.sender", "send.recovered",
				slog.String("action", j.Action),
				slog.Int("attempts", attempts),
			)
		}
		if d.opts.Observe != nil {
			d.opts.Observe(j.Action, outcome)
		}
	}
}

// run executes j until it succeeds, fails permanently or runs out of
// attempts or time. It returns the attempts made and the last error.
func (d *Dispatcher) run(j Job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	var err error
	for attempt := 1; attempt <= d.opts.Attempts; attempt++ {
		if err = j.Run(); err == nil {
			return attempt, nil
		}
		delay, retry := RetryDelay(err, attempt, d.opts.Backoff)
		if !retry || attempt == d.opts.Attempts {
			return attempt, err
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return attempt, err
		}
		logger.Debug(ctx, "tg.sender", "send.retry",
			slog.String("action", j.Action),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("cause", ErrorKind(err)),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return d.opts.Attempts, err
}
