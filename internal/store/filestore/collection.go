package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"

	"github.com/m3rciful/kinobot/core/logger"
)

// FlushObserver receives the duration of every successful document flush.
type FlushObserver interface {
	ObserveFlush(collection string, d time.Duration)
}

// collection is one JSON document mirrored in memory. Every mutation rewrites
// the whole document before returning. An empty path keeps the document in
// memory only.
type collection[T any] struct {
	name     string
	path     string
	observer FlushObserver
	// clone copies the document for mutate. Nil means T has no shared
	// references and a plain assignment is a copy.
	clone func(T) T

	mu      sync.Mutex
	data    T
	corrupt bool
}

// load reads the document. A missing file is replaced by def() and persisted
// at once. A malformed file is logged and left untouched; the collection
// starts from def() and the bad file is moved aside on the first flush.
func (c *collection[T]) load(ctx context.Context, def func() T, fix func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = def()
	if c.path == "" {
		return nil
	}

	raw, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info(ctx, "store", "collection.init",
			slog.String("collection", c.name),
			slog.String("path", c.path),
		)
		return c.flushLocked(ctx)
	case err != nil:
		return fmt.Errorf("read %s: %w", c.path, err)
	}

	var decoded T
	if err := json.Unmarshal(jsonc.ToJSON(raw), &decoded); err != nil {
		c.corrupt = true
		logger.Error(ctx, "store", "collection.malformed",
			slog.String("collection", c.name),
			slog.String("path", c.path),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil
	}
	if fix != nil {
		fix(&decoded)
	}
	c.data = decoded
	logger.Debug(ctx, "store", "collection.loaded",
		slog.String("collection", c.name),
		slog.String("path", c.path),
	)
	return nil
}

// read runs fn against the in-memory document under the collection lock.
func (c *collection[T]) read(fn func(data T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.data)
}

// mutate applies fn to a copy of the document and flushes it when fn reports
// a change. The copy replaces the document only once it is on disk, so a
// failed flush leaves memory matching the file.
func (c *collection[T]) mutate(ctx context.Context, fn func(data *T) (bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.data
	if c.clone != nil {
		next = c.clone(c.data)
	}
	changed, err := fn(&next)
	if err != nil || !changed {
		return err
	}
	prev := c.data
	c.data = next
	if err := c.flushLocked(ctx); err != nil {
		c.data = prev
		return err
	}
	return nil
}

func (c *collection[T]) flushLocked(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	start := time.Now()

	if c.corrupt {
		aside := c.path + ".corrupt"
		if err := os.Rename(c.path, aside); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move malformed %s aside: %w", c.path, err)
		}
		logger.Warn(ctx, "store", "collection.moved_aside",
			slog.String("collection", c.name),
			slog.String("path", aside),
		)
		c.corrupt = false
	}

	payload, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := writeAtomic(c.path, append(payload, '\n')); err != nil {
		logger.Error(ctx, "store", "collection.flush",
			slog.String("status", "fail"),
			slog.String("collection", c.name),
			slog.String("path", c.path),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("flush %s: %w", c.name, err)
	}

	took := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveFlush(c.name, took)
	}
	logger.Debug(ctx, "store", "collection.flush",
		slog.String("status", "ok"),
		slog.String("collection", c.name),
		slog.Duration("duration", took),
	)
	return nil
}

// writeAtomic writes data to path via a synced temporary file and a rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
