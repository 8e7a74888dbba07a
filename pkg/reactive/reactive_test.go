package reactive

import (
	"errors"
	"reflect"
	"testing"
)

type testListener struct {
	id    uint64
	dirty int
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() { l.dirty++ }
func (l *testListener) ID() uint64 { return l.id }

func TestRefBasic(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref(1)

	if r.Value() != 1 {
		t.Errorf("expected 1, got %v", r.Value())
	}

	listener := newTestListener()
	rt.WithListener(listener, func() {
		_ = r.Value()
	})

	r.Set(2)
	if listener.dirty != 1 {
		t.Errorf("expected 1 notification, got %d", listener.dirty)
	}

	// Same value should not notify, even across numeric kinds
	r.Set(2.0)
	if listener.dirty != 1 {
		t.Errorf("same value should not notify, got %d", listener.dirty)
	}
}

func TestRefPeekDoesNotTrack(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref("a")
	listener := newTestListener()
	rt.WithListener(listener, func() {
		_ = r.Peek()
	})
	r.Set("b")
	if listener.dirty != 0 {
		t.Errorf("Peek should not subscribe listener, got %d notifications", listener.dirty)
	}
}

func TestReactiveConvertsContainers(t *testing.T) {
	rt := NewRuntime()
	v := rt.Reactive(map[string]any{
		"list": []any{1, map[string]any{"x": true}},
		"tags": []string{"a", "b"},
	})

	obj, ok := v.(*Object)
	if !ok {
		t.Fatalf("expected *Object, got %T", v)
	}
	list, _ := obj.Get("list")
	arr, ok := list.(*Array)
	if !ok {
		t.Fatalf("expected *Array, got %T", list)
	}
	second, _ := arr.At(1)
	if _, ok := second.(*Object); !ok {
		t.Errorf("expected nested *Object, got %T", second)
	}
	tags, _ := obj.Get("tags")
	if _, ok := tags.(*Array); !ok {
		t.Errorf("expected []string to become *Array, got %T", tags)
	}

	want := map[string]any{
		"list": []any{1, map[string]any{"x": true}},
		"tags": []any{"a", "b"},
	}
	if got := ToRaw(v); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReactiveStruct(t *testing.T) {
	type item struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	rt := NewRuntime()
	v := rt.Reactive(item{Name: "honey", Count: 2})
	want := map[string]any{"name": "honey", "count": float64(2)}
	if got := ToRaw(v); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestObjectKeysTrackAdds(t *testing.T) {
	rt := NewRuntime()
	obj := rt.NewObject()
	listener := newTestListener()
	rt.WithListener(listener, func() {
		_ = obj.Keys()
	})

	obj.Set("a", 1)
	if listener.dirty != 1 {
		t.Errorf("adding a key should notify key-set listeners, got %d", listener.dirty)
	}

	obj.Delete("a")
	if listener.dirty != 2 {
		t.Errorf("deleting a key should notify key-set listeners, got %d", listener.dirty)
	}

	if obj.Delete("missing") {
		t.Error("deleting a missing key should report false")
	}
}

func TestObjectKeyOrder(t *testing.T) {
	rt := NewRuntime()
	v, err := rt.DecodeJSON([]byte(`{"z":1,"a":2,"m":{"y":1,"b":2}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	obj := v.(*Object)
	if got := obj.Keys(); !reflect.DeepEqual(got, []string{"z", "a", "m"}) {
		t.Errorf("expected document order, got %v", got)
	}
	obj.Set("b", 3)
	obj.Delete("a")
	if got := obj.Keys(); !reflect.DeepEqual(got, []string{"z", "m", "b"}) {
		t.Errorf("expected insertion order, got %v", got)
	}

	data, err := obj.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"z":1,"m":{"y":1,"b":2},"b":3}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestArrayMutations(t *testing.T) {
	rt := NewRuntime()
	arr := rt.Reactive([]any{"a", "b", "c"}).(*Array)
	listener := newTestListener()
	rt.WithListener(listener, func() {
		_ = arr.Len()
	})

	arr.Push("d")
	arr.Unshift("z")
	arr.Insert(2, "x")
	if got := arr.Raw(); !reflect.DeepEqual(got, []any{"z", "a", "x", "b", "c", "d"}) {
		t.Errorf("unexpected contents %v", got)
	}

	removed, ok := arr.RemoveAt(0)
	if !ok || removed != "z" {
		t.Errorf("expected to remove z, got %v %v", removed, ok)
	}

	gone := arr.Splice(1, 2, "q")
	if !reflect.DeepEqual(gone, []any{"x", "b"}) {
		t.Errorf("unexpected spliced elements %v", gone)
	}
	if got := arr.Raw(); !reflect.DeepEqual(got, []any{"a", "q", "c", "d"}) {
		t.Errorf("unexpected contents after splice %v", got)
	}

	if listener.dirty != 5 {
		t.Errorf("expected 5 notifications, got %d", listener.dirty)
	}
}

func TestArraySetAtGrows(t *testing.T) {
	rt := NewRuntime()
	arr := rt.NewArray()
	arr.SetAt(2, "c")
	if got := arr.Raw(); !reflect.DeepEqual(got, []any{nil, nil, "c"}) {
		t.Errorf("expected growth with nil holes, got %v", got)
	}
}

func TestComputedLazy(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref(2)
	calls := 0
	c := rt.Computed(func() any {
		calls++
		return r.Value().(int) * 10
	}, nil)

	if calls != 0 {
		t.Errorf("computed should be lazy, ran %d times", calls)
	}
	if c.Value() != 20 || c.Value() != 20 {
		t.Errorf("expected 20, got %v", c.Value())
	}
	if calls != 1 {
		t.Errorf("expected 1 computation, got %d", calls)
	}

	r.Set(3)
	r.Set(4)
	if c.Value() != 40 {
		t.Errorf("expected 40, got %v", c.Value())
	}
	if calls != 2 {
		t.Errorf("expected 2 computations, got %d", calls)
	}
}

func TestComputedWritable(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref("a")
	ro := rt.Computed(func() any { return r.Value() }, nil)
	if err := ro.Set("x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}

	rw := rt.Computed(func() any { return r.Value() }, func(v any) error {
		r.Set(v)
		return nil
	})
	if err := rw.Set("b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if rw.Value() != "b" || ro.Value() != "b" {
		t.Errorf("expected both derivations to read b, got %v and %v", rw.Value(), ro.Value())
	}
}

func TestWatchDeferredUntilFlush(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref(0)
	var calls []any
	rt.Watch(func() any { return r.Value() }, func(newV, oldV any) {
		calls = append(calls, []any{newV, oldV})
	}, WatchOptions{})

	r.Set(1)
	r.Set(2)
	if len(calls) != 0 {
		t.Fatalf("handler must not run before flush, ran %d times", len(calls))
	}
	if err := rt.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if !reflect.DeepEqual(calls[0], []any{2, 0}) {
		t.Errorf("expected new=2 old=0, got %v", calls[0])
	}
}

func TestWatchSkipsUnchanged(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref(1)
	calls := 0
	rt.Watch(func() any { return r.Value() }, func(_, _ any) { calls++ }, WatchOptions{})

	r.Set(2)
	r.Set(1)
	rt.Flush()
	if calls != 0 {
		t.Errorf("value returned to original, expected no call, got %d", calls)
	}
}

func TestWatchDeepCoalesces(t *testing.T) {
	rt := NewRuntime()
	state := rt.Ref(map[string]any{"a": map[string]any{"b": 1}, "list": []any{}})
	calls := 0
	var last any
	rt.Watch(func() any { return state.Value() }, func(newV, _ any) {
		calls++
		last = ToRaw(newV)
	}, WatchOptions{Deep: true})

	obj := state.Peek().(*Object)
	a, _ := obj.Get("a")
	a.(*Object).Set("b", 2)
	list, _ := obj.Get("list")
	list.(*Array).Push("x")
	obj.Set("c", true)

	rt.Flush()
	if calls != 1 {
		t.Fatalf("expected 1 coalesced call, got %d", calls)
	}
	want := map[string]any{"a": map[string]any{"b": 2}, "list": []any{"x"}, "c": true}
	if !reflect.DeepEqual(last, want) {
		t.Errorf("expected %v, got %v", want, last)
	}

	// Containers added after registration are observed too
	obj.Set("nested", map[string]any{})
	rt.Flush()
	nested, _ := obj.Get("nested")
	nested.(*Object).Set("deep", 1)
	rt.Flush()
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWatchImmediateAndStop(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref("x")
	calls := 0
	sub := rt.Watch(func() any { return r.Value() }, func(newV, oldV any) {
		calls++
		if calls == 1 && (newV != "x" || oldV != nil) {
			t.Errorf("immediate call expected new=x old=nil, got %v %v", newV, oldV)
		}
	}, WatchOptions{Immediate: true})

	if calls != 1 {
		t.Fatalf("expected immediate call, got %d", calls)
	}

	r.Set("y")
	sub.Stop()
	rt.Flush()
	if calls != 1 {
		t.Errorf("stopped subscription must not run, got %d calls", calls)
	}
	if sub.Active() {
		t.Error("expected subscription to be inactive")
	}
}

func TestWatchMany(t *testing.T) {
	rt := NewRuntime()
	a := rt.Ref(1)
	b := rt.Ref("x")
	var got []any
	rt.WatchMany([]func() any{
		func() any { return a.Value() },
		func() any { return b.Value() },
	}, func(newV, oldV any) {
		got = []any{newV, oldV}
	}, WatchOptions{})

	b.Set("y")
	rt.Flush()
	want := []any{[]any{1, "y"}, []any{1, "x"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBatchFlushesOnce(t *testing.T) {
	rt := NewRuntime()
	r := rt.Ref(0)
	calls := 0
	rt.Watch(func() any { return r.Value() }, func(_, _ any) { calls++ }, WatchOptions{})

	err := rt.Batch(func() {
		r.Set(1)
		rt.Batch(func() {
			r.Set(2)
		})
		if calls != 0 {
			t.Errorf("nested batch must not flush, got %d calls", calls)
		}
		r.Set(3)
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call after batch, got %d", calls)
	}
}

func TestFlushLoopDetected(t *testing.T) {
	rt := NewRuntime(WithMaxFlushRounds(5))
	r := rt.Ref(0)
	rt.Watch(func() any { return r.Value() }, func(newV, _ any) {
		r.Set(newV.(int) + 1)
	}, WatchOptions{})

	r.Set(1)
	if err := rt.Flush(); !errors.Is(err, ErrFlushLoop) {
		t.Errorf("expected ErrFlushLoop, got %v", err)
	}
}

func TestWatchHandlerMutationRunsSameFlush(t *testing.T) {
	rt := NewRuntime()
	src := rt.Ref(0)
	dst := rt.Ref(0)
	rt.Watch(func() any { return src.Value() }, func(newV, _ any) {
		dst.Set(newV.(int) * 2)
	}, WatchOptions{})
	seen := 0
	rt.Watch(func() any { return dst.Value() }, func(newV, _ any) {
		seen = newV.(int)
	}, WatchOptions{})

	src.Set(4)
	rt.Flush()
	if seen != 8 {
		t.Errorf("expected chained watcher to see 8, got %d", seen)
	}
}

func TestSame(t *testing.T) {
	rt := NewRuntime()
	obj := rt.NewObject()
	tests := []struct {
		a, b any
		want bool
	}{
		{1, 1.0, true},
		{int64(3), uint8(3), true},
		{"a", "a", true},
		{"1", 1, false},
		{nil, nil, true},
		{nil, 0, false},
		{obj, obj, true},
		{obj, rt.NewObject(), false},
		{[]int{1}, []int{1}, true},
	}
	for _, tt := range tests {
		if got := Same(tt.a, tt.b); got != tt.want {
			t.Errorf("Same(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
