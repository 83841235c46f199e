package logger

import (
	"errors"
	"io"
	"sync"
)

// sink is one output. errorsOnly sinks receive ERROR lines only.
type sink struct {
	w          io.Writer
	errorsOnly bool
}

// entry is one queued line. A non-nil ack turns it into a flush barrier.
type entry struct {
	line    []byte
	isError bool
	ack     chan struct{}
}

// asyncWriter fans lines out to its sinks from a single goroutine so
// handlers never block on slow stdout or disk.
type asyncWriter struct {
	queue chan entry
	done  chan struct{}
	once  sync.Once
	sinks []sink

	mu  sync.Mutex
	err error
}

func newAsyncWriter(queueSize int, sinks ...sink) *asyncWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	live := make([]sink, 0, len(sinks))
	for _, s := range sinks {
		if s.w != nil {
			live = append(live, s)
		}
	}
	w := &asyncWriter{
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
		sinks: live,
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			close(e.ack)
			continue
		}
		for _, s := range w.sinks {
			if s.errorsOnly && !e.isError {
				continue
			}
			if _, err := s.w.Write(e.line); err != nil {
				w.setErr(err)
			}
		}
	}
}

// Write copies p and queues it. A full queue blocks rather than drop lines.
func (w *asyncWriter) Write(p []byte, isError bool) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- entry{line: append([]byte(nil), p...), isError: isError}
	return nil
}

// Flush returns once every line queued before the call has been written.
func (w *asyncWriter) Flush() error {
	ack := make(chan struct{})
	w.queue <- entry{ack: ack}
	<-ack
	return w.Err()
}

// Close drains the queue and stops the writer goroutine.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.Err()
}

// Err reports the first sink write error.
func (w *asyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = errors.Join(errors.New("logger: sink write failed"), err)
	}
}
