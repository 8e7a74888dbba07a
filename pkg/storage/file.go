package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const fileExt = ".json"

// File stores each key as a file in a directory. Writes go to a temporary
// file first and are renamed into place.
type File struct {
	dir      string
	logger   *slog.Logger
	debounce time.Duration

	mu     sync.Mutex
	closed bool
	stops  []func()
}

// FileOption configures a File storage.
type FileOption func(*File)

// WithFileLogger sets the logger used to report watch errors.
func WithFileLogger(l *slog.Logger) FileOption {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFileDebounce sets how long Watch waits for a burst of events on one
// file to settle. Default: 50ms.
func WithFileDebounce(d time.Duration) FileOption {
	return func(f *File) {
		f.debounce = d
	}
}

// NewFile creates a file storage rooted at dir, creating it if needed.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if dir == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	f := &File{
		dir:      dir,
		logger:   slog.Default(),
		debounce: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Dir returns the storage directory.
func (f *File) Dir() string {
	return f.dir
}

// Path returns the file that holds key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+fileExt)
}

func (f *File) keyOf(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Load reads the file for key.
func (f *File) Load(ctx context.Context, key string) ([]byte, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", key, err)
	}
	return data, nil
}

// Save writes data for key atomically.
func (f *File) Save(ctx context.Context, key string, data []byte) error {
	if f.isClosed() {
		return ErrClosed
	}
	tmp, err := os.CreateTemp(f.dir, ".teddy-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	if err := os.Rename(name, f.Path(key)); err != nil {
		os.Remove(name)
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key.
func (f *File) Delete(ctx context.Context, key string) error {
	if f.isClosed() {
		return ErrClosed
	}
	err := os.Remove(f.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every key stored in the directory.
func (f *File) Keys() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := f.keyOf(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Watch reports keys whose files are created, written, renamed into place or
// removed. Bursts of events for one key within the debounce window are
// reported once.
func (f *File) Watch(ctx context.Context, fn func(key string)) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("storage: watch: %w", err)
	}
	if err := w.Add(f.dir); err != nil {
		f.mu.Unlock()
		w.Close()
		return fmt.Errorf("storage: watch %s: %w", f.dir, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	f.stops = append(f.stops, cancel)
	f.mu.Unlock()

	go f.watchLoop(ctx, w, fn)
	return nil
}

func (f *File) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(string)) {
	defer w.Close()

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	fire := func() {
		for key := range pending {
			fn(key)
		}
		pending = make(map[string]bool)
		timer, timerC = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key, ok := f.keyOf(event.Name)
			if !ok {
				continue
			}
			pending[key] = true
			if timer == nil {
				timer = time.NewTimer(f.debounce)
				timerC = timer.C
			} else {
				timer.Reset(f.debounce)
			}
		case <-timerC:
			fire()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.logger.Warn("storage: watch error", "dir", f.dir, "error", err)
		}
	}
}

// Close stops every watch.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, stop := range f.stops {
		stop()
	}
	f.stops = nil
	return nil
}
