package history

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vango-dev/teddy"
)

func setup(t *testing.T, limit int) (*teddy.Teddy, teddy.Definition, *Feature) {
	t.Helper()
	td := teddy.New()
	t.Cleanup(func() { td.Close() })
	def := teddy.Def("app", "counter")
	h := New(limit)
	td.SetStore(def, teddy.Config{
		State:    map[string]any{"count": 0},
		Features: []teddy.Feature{h},
	})
	return td, def, h
}

func step(t *testing.T, td *teddy.Teddy, def teddy.Definition, n int) {
	t.Helper()
	if err := td.Set(def, "count", n); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := td.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func counts(h *Feature) []any {
	var out []any
	for _, e := range h.Entries() {
		out = append(out, e.State.(map[string]any)["count"])
	}
	return out
}

// =============================================================================
// Recording
// =============================================================================

func TestRecordsAfterFlush(t *testing.T) {
	td, def, h := setup(t, 0)
	step(t, td, def, 1)
	step(t, td, def, 2)

	got := counts(h)
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("expected [0 1 2], got %v", got)
	}
	if h.Cursor() != 2 {
		t.Errorf("expected cursor 2, got %d", h.Cursor())
	}
	for _, e := range h.Entries() {
		if e.ID == uuid.Nil {
			t.Error("expected entry id")
		}
	}
}

func TestBatchedChangesRecordOnce(t *testing.T) {
	td, def, h := setup(t, 0)
	td.Batch(func() {
		td.Set(def, "count", 1)
		td.Set(def, "count", 2)
		td.Set(def, "label", "x")
	})
	if n := len(h.Entries()); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
}

func TestLimitDropsOldest(t *testing.T) {
	td, def, h := setup(t, 2)
	step(t, td, def, 1)
	step(t, td, def, 2)
	step(t, td, def, 3)

	got := counts(h)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected [2 3], got %v", got)
	}
}

// =============================================================================
// Undo / Redo
// =============================================================================

func TestUndoRedo(t *testing.T) {
	td, def, h := setup(t, 0)
	step(t, td, def, 1)
	step(t, td, def, 2)

	if !h.Undo() {
		t.Fatal("expected undo")
	}
	td.Flush()
	if got := td.Get(def, "count"); got != 1 {
		t.Errorf("expected 1 after undo, got %v", got)
	}
	if n := len(h.Entries()); n != 3 {
		t.Errorf("expected restore not to record, got %d entries", n)
	}

	h.Undo()
	td.Flush()
	if got := td.Get(def, "count"); got != 0 {
		t.Errorf("expected 0 after second undo, got %v", got)
	}
	if h.Undo() {
		t.Error("expected nothing left to undo")
	}

	if !h.Redo() {
		t.Fatal("expected redo")
	}
	td.Flush()
	if got := td.Get(def, "count"); got != 1 {
		t.Errorf("expected 1 after redo, got %v", got)
	}
}

func TestRecordAfterUndoDropsRedo(t *testing.T) {
	td, def, h := setup(t, 0)
	step(t, td, def, 1)
	step(t, td, def, 2)
	h.Undo()
	td.Flush()
	step(t, td, def, 5)

	got := counts(h)
	if len(got) != 3 || got[2] != 5 {
		t.Errorf("expected [0 1 5], got %v", got)
	}
	if h.CanRedo() {
		t.Error("expected redo to be discarded")
	}
}

func TestUndoNotifiesWatchers(t *testing.T) {
	td, def, h := setup(t, 0)
	step(t, td, def, 1)

	var seen []any
	td.Watch(def, teddy.Watch{Path: "count", Handler: func(newV, _ any) { seen = append(seen, newV) }})
	h.Undo()
	td.Flush()
	if len(seen) != 1 || seen[0] != 0 {
		t.Errorf("expected [0], got %v", seen)
	}
}

func TestRestoreDoesNotShareEntry(t *testing.T) {
	td := teddy.New()
	defer td.Close()
	def := teddy.Def("app", "list")
	h := New(0)
	td.SetStore(def, teddy.Config{State: map[string]any{"items": []any{}}, Features: []teddy.Feature{h}})
	td.Push(def, "items", "a")
	td.Flush()

	h.Undo()
	td.Flush()
	td.Push(def, "items", "b")
	td.Flush()

	first := h.Entries()[0].State.(map[string]any)["items"].([]any)
	if len(first) != 0 {
		t.Errorf("expected first entry untouched, got %v", first)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestSecondStoreRejected(t *testing.T) {
	td, _, h := setup(t, 0)
	err := td.GetStore(teddy.Def("app", "other")).Use(h)
	if !errors.Is(err, ErrInstalled) {
		t.Errorf("expected ErrInstalled, got %v", err)
	}
}

func TestRemoveStoreStopsRecording(t *testing.T) {
	td, def, h := setup(t, 0)
	td.RemoveStore(def)
	if h.CanUndo() || h.Undo() {
		t.Error("expected undo to be unavailable after removal")
	}
}

func TestClear(t *testing.T) {
	td, def, h := setup(t, 0)
	step(t, td, def, 1)
	step(t, td, def, 2)
	h.Clear()
	if n := len(h.Entries()); n != 1 || h.Cursor() != 0 {
		t.Errorf("expected a single entry at cursor 0, got %d at %d", n, h.Cursor())
	}
}
