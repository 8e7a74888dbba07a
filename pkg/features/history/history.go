// Package history records snapshots of a store's state and restores them.
//
// A snapshot is taken after every flush that changed the state. Undo and
// Redo move a cursor through the log and replace the state with the entry
// under it; restoring does not record a new entry. Recording after an Undo
// discards the entries that could have been redone.
//
//	h := history.New(50)
//	t.SetStore(def, teddy.Config{State: state, Features: []teddy.Feature{h}})
//	t.Set(def, "count", 2)
//	t.Flush()
//	h.Undo()
package history

import (
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// Name is the feature name.
const Name = "history"

// DefaultLimit is the number of entries kept when New is given a
// non-positive limit.
const DefaultLimit = 100

// ErrInstalled is returned when a Feature is installed into a second store.
var ErrInstalled = errors.New("history: already installed in another store")

// Entry is one recorded snapshot.
type Entry struct {
	ID    uuid.UUID
	Time  time.Time
	State any
}

// Feature is the history feature for a single store. Its methods must run
// on the store's goroutine, or inside Teddy.Exclusive.
type Feature struct {
	limit   int
	store   *teddy.Store
	watcher *teddy.Watcher
	entries []Entry
	cursor  int
	now     func() time.Time
}

// New creates a history keeping at most limit entries, oldest dropped first.
func New(limit int) *Feature {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feature{limit: limit, now: time.Now}
}

// Name returns "history".
func (f *Feature) Name() string {
	return Name
}

// Install records the current state as the first entry.
func (f *Feature) Install(s *teddy.Store) error {
	if f.store != nil && f.store != s {
		return ErrInstalled
	}
	f.store = s
	f.entries = f.entries[:0]
	f.cursor = -1
	f.record(s.Raw())
	f.watcher = s.Watch(teddy.Watch{
		Key:     "feature:" + Name,
		Handler: func(_, _ any) { f.changed() },
	})
	return nil
}

// Uninstall stops recording.
func (f *Feature) Uninstall(s *teddy.Store) error {
	if f.watcher != nil {
		f.watcher.Stop()
		f.watcher = nil
	}
	f.store = nil
	return nil
}

func (f *Feature) changed() {
	raw := f.store.Raw()
	// A restore lands on the entry under the cursor.
	if f.cursor >= 0 && reflect.DeepEqual(raw, f.entries[f.cursor].State) {
		return
	}
	f.record(raw)
}

func (f *Feature) record(raw any) {
	f.entries = append(f.entries[:f.cursor+1], Entry{ID: uuid.New(), Time: f.now(), State: raw})
	if over := len(f.entries) - f.limit; over > 0 {
		f.entries = append(f.entries[:0], f.entries[over:]...)
	}
	f.cursor = len(f.entries) - 1
}

// Undo restores the previous entry. It reports false when there is none.
func (f *Feature) Undo() bool {
	if !f.CanUndo() {
		return false
	}
	f.cursor--
	f.restore()
	return true
}

// Redo restores the entry undone last. It reports false when there is none.
func (f *Feature) Redo() bool {
	if !f.CanRedo() {
		return false
	}
	f.cursor++
	f.restore()
	return true
}

// CanUndo reports whether Undo would restore an entry.
func (f *Feature) CanUndo() bool {
	return f.store != nil && f.cursor > 0
}

// CanRedo reports whether Redo would restore an entry.
func (f *Feature) CanRedo() bool {
	return f.store != nil && f.cursor < len(f.entries)-1
}

func (f *Feature) restore() {
	// Entries stay raw; the store gets its own copy.
	f.store.ReplaceState(reactive.ToRaw(f.entries[f.cursor].State))
}

// Entries returns the log, oldest first. Entry states are raw values and
// must not be modified.
func (f *Feature) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Cursor returns the index of the entry matching the current state.
func (f *Feature) Cursor() int {
	return f.cursor
}

// Clear keeps only the entry under the cursor.
func (f *Feature) Clear() {
	if f.cursor < 0 {
		return
	}
	f.entries = append(f.entries[:0], f.entries[f.cursor])
	f.cursor = 0
}
