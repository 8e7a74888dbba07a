// Package cache persists store state to a storage backend.
//
// On install the feature loads the value saved under "teddy:<space>:<name>"
// and merges it into the store's state. It then watches the whole state and
// writes a JSON snapshot after every flush that changed it, debounced.
//
//	f := cache.New(storage.NewMemory(), cache.WithDebounce(200*time.Millisecond))
//	t.SetStore(def, teddy.Config{Features: []teddy.Feature{f}})
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/pkg/storage"
)

// Name is the feature name.
const Name = "cache"

// DefaultDebounce is how long the feature waits after the last change before
// writing.
const DefaultDebounce = 100 * time.Millisecond

// Key returns the storage key of a store.
func Key(def teddy.Definition) string {
	if def.Space == "" {
		def.Space = teddy.DefaultSpace
	}
	if def.Name == "" {
		def.Name = teddy.DefaultName
	}
	return "teddy:" + def.Space + ":" + def.Name
}

// Option configures the feature.
type Option func(*Feature)

// WithDebounce sets the write delay. Zero writes synchronously during the
// flush that observed the change.
func WithDebounce(d time.Duration) Option {
	return func(f *Feature) {
		if d >= 0 {
			f.debounce = d
		}
	}
}

// WithLogger sets the logger used to report storage errors. If nil, the
// store's logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feature) {
		f.logger = l
	}
}

// WithTimeout bounds every storage call. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(f *Feature) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithReload reloads a store when the storage reports that its key changed
// outside this feature. The storage must implement storage.Watcher. Reloading
// stops when ctx is done or the store is removed.
func WithReload(ctx context.Context) Option {
	return func(f *Feature) {
		f.reload = ctx
	}
}

// Feature is the cache feature. One Feature may be installed into many
// stores.
type Feature struct {
	storage  storage.Storage
	debounce time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	reload   context.Context

	mu      sync.Mutex
	entries map[*teddy.Store]*entry
}

// New creates a cache feature writing to s.
func New(s storage.Storage, opts ...Option) *Feature {
	f := &Feature{
		storage:  s,
		debounce: DefaultDebounce,
		timeout:  5 * time.Second,
		entries:  make(map[*teddy.Store]*entry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns "cache".
func (f *Feature) Name() string {
	return Name
}

type entry struct {
	f       *Feature
	store   *teddy.Store
	key     string
	logger  *slog.Logger
	watcher *teddy.Watcher
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending []byte
	timer   *time.Timer
	last    []byte
}

func (f *Feature) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), f.timeout)
}

// Install loads the persisted state of s and starts persisting changes.
func (f *Feature) Install(s *teddy.Store) error {
	if f.storage == nil {
		return errors.New("cache: no storage")
	}
	logger := f.logger
	if logger == nil {
		logger = s.Logger()
	}
	e := &entry{f: f, store: s, key: Key(s.Definition()), logger: logger}

	ctx, cancel := f.ctx()
	data, err := f.storage.Load(ctx, e.key)
	cancel()
	if err != nil {
		return fmt.Errorf("cache: load %s: %w", e.key, err)
	}
	if data != nil {
		v, err := s.Teddy().Runtime().DecodeJSON(data)
		if err != nil {
			return fmt.Errorf("cache: decode %s: %w", e.key, err)
		}
		if err := s.SetState(v); err != nil {
			return err
		}
		e.last = data
	}

	e.watcher = s.Watch(teddy.Watch{
		Key:     "feature:" + Name,
		Handler: func(_, _ any) { e.changed() },
	})

	if f.reload != nil {
		if w, ok := f.storage.(storage.Watcher); ok {
			rctx, rcancel := context.WithCancel(f.reload)
			e.cancel = rcancel
			if err := w.Watch(rctx, e.external); err != nil {
				rcancel()
				logger.Warn("cache: reload disabled", "key", e.key, "error", err)
			}
		} else {
			logger.Warn("cache: storage cannot report changes, reload disabled", "key", e.key)
		}
	}

	f.mu.Lock()
	f.entries[s] = e
	f.mu.Unlock()
	return nil
}

// Uninstall writes any pending snapshot and stops persisting s.
func (f *Feature) Uninstall(s *teddy.Store) error {
	f.mu.Lock()
	e, ok := f.entries[s]
	delete(f.entries, s)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
	return e.flush()
}

// Sync writes every pending snapshot now.
func (f *Feature) Sync() error {
	f.mu.Lock()
	entries := make([]*entry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, e)
	}
	f.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// changed runs during flush on the store's goroutine. The snapshot is taken
// here; only the write happens later.
func (e *entry) changed() {
	data, err := json.Marshal(e.store.State())
	if err != nil {
		e.logger.Error("cache: encode state", "key", e.key, "error", err)
		return
	}

	e.mu.Lock()
	if e.pending == nil && bytes.Equal(data, e.last) {
		e.mu.Unlock()
		return
	}
	e.pending = data
	if e.f.debounce == 0 {
		e.mu.Unlock()
		if err := e.flush(); err != nil {
			e.logger.Error("cache: save", "key", e.key, "error", err)
		}
		return
	}
	if e.timer == nil {
		e.timer = time.AfterFunc(e.f.debounce, func() {
			if err := e.flush(); err != nil {
				e.logger.Error("cache: save", "key", e.key, "error", err)
			}
		})
	} else {
		e.timer.Reset(e.f.debounce)
	}
	e.mu.Unlock()
}

// flush writes the pending snapshot, if any.
func (e *entry) flush() error {
	e.mu.Lock()
	data := e.pending
	e.pending = nil
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if data == nil {
		e.mu.Unlock()
		return nil
	}
	e.last = data
	e.mu.Unlock()

	ctx, cancel := e.f.ctx()
	defer cancel()
	return e.f.storage.Save(ctx, e.key, data)
}

// external runs on a storage goroutine when any key changed.
func (e *entry) external(key string) {
	if key != e.key {
		return
	}
	ctx, cancel := e.f.ctx()
	data, err := e.f.storage.Load(ctx, e.key)
	cancel()
	if err != nil {
		e.logger.Error("cache: reload", "key", e.key, "error", err)
		return
	}

	e.mu.Lock()
	same := data == nil || bytes.Equal(data, e.last)
	if !same {
		e.last = data
	}
	e.mu.Unlock()
	if same {
		return
	}

	t := e.store.Teddy()
	err = t.Exclusive(func() {
		if e.store.Detached() {
			return
		}
		v, err := t.Runtime().DecodeJSON(data)
		if err != nil {
			e.logger.Error("cache: decode reload", "key", e.key, "error", err)
			return
		}
		e.store.ReplaceState(v)
	})
	if err != nil {
		e.logger.Error("cache: reload flush", "key", e.key, "error", err)
	}
	e.logger.Debug("cache: reloaded", "key", e.key)
}
