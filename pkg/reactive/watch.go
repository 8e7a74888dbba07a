package reactive

// WatchOptions configures a subscription.
type WatchOptions struct {
	// Deep subscribes to every container reachable from the watched value and
	// invokes the handler on any nested change.
	Deep bool

	// Immediate invokes the handler once during registration with a nil old value.
	Immediate bool
}

// Handler receives the new and previous value of a watched source.
type Handler func(newV, oldV any)

// Subscription is a live watch registration.
type Subscription struct {
	rt      *Runtime
	id      uint64
	source  func() any
	handler Handler
	opts    WatchOptions
	equal   func(a, b any) bool

	sources []*dep
	old     any
	pending bool
	stopped bool
}

// Watch subscribes handler to source. The source runs once immediately to
// collect dependencies; afterwards the handler runs during Flush whenever a
// dependency changed since the last flush.
func (rt *Runtime) Watch(source func() any, handler Handler, opts WatchOptions) *Subscription {
	s := &Subscription{
		rt:      rt,
		id:      nextID(),
		source:  source,
		handler: handler,
		opts:    opts,
		equal:   Same,
	}
	s.start()
	return s
}

// WatchMany watches several sources with one handler. The handler receives
// []any new and old values, positionally.
func (rt *Runtime) WatchMany(sources []func() any, handler Handler, opts WatchOptions) *Subscription {
	s := &Subscription{
		rt: rt,
		id: nextID(),
		source: func() any {
			vals := make([]any, len(sources))
			for i, src := range sources {
				vals[i] = src()
			}
			return vals
		},
		handler: handler,
		opts:    opts,
		equal:   sameAll,
	}
	s.start()
	return s
}

func sameAll(a, b any) bool {
	av, _ := a.([]any)
	bv, _ := b.([]any)
	if len(av) != len(bv) {
		return false
	}
	for i := range av {
		if !Same(av[i], bv[i]) {
			return false
		}
	}
	return true
}

func (s *Subscription) start() {
	v := s.collect()
	s.old = v
	if s.opts.Immediate {
		s.handler(v, nil)
	}
}

// collect runs the source with this subscription as the current listener.
func (s *Subscription) collect() any {
	s.clearSources()
	old := s.rt.setListener(s)
	defer s.rt.setListener(old)

	v := s.source()
	if s.opts.Deep {
		traverse(v, make(map[any]bool))
	}
	return v
}

func (s *Subscription) clearSources() {
	for _, d := range s.sources {
		d.unsubscribe(s)
	}
	s.sources = s.sources[:0]
}

func (s *Subscription) addSource(d *dep) {
	for _, existing := range s.sources {
		if existing == d {
			return
		}
	}
	s.sources = append(s.sources, d)
}

// MarkDirty schedules the subscription for the next flush.
func (s *Subscription) MarkDirty() {
	if s.stopped || s.pending {
		return
	}
	s.pending = true
	s.rt.enqueue(s)
}

// ID returns the unique identifier for this subscription.
func (s *Subscription) ID() uint64 {
	return s.id
}

func (s *Subscription) run() {
	s.pending = false
	if s.stopped {
		return
	}
	v := s.collect()
	if !s.opts.Deep && s.equal(v, s.old) {
		return
	}
	old := s.old
	s.old = v
	s.handler(v, old)
}

// Stop cancels the subscription. A pending invocation is dropped.
func (s *Subscription) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.clearSources()
}

// Active reports whether the subscription has not been stopped.
func (s *Subscription) Active() bool {
	return !s.stopped
}

// traverse reads every container reachable from v so the current listener
// subscribes to all of them.
func traverse(v any, seen map[any]bool) {
	switch x := v.(type) {
	case *Object:
		if seen[x] {
			return
		}
		seen[x] = true
		x.Range(func(_ string, child any) bool {
			traverse(child, seen)
			return true
		})
	case *Array:
		if seen[x] {
			return
		}
		seen[x] = true
		for _, child := range x.Items() {
			traverse(child, seen)
		}
	case *Ref:
		traverse(x.Value(), seen)
	case *Computed:
		traverse(x.Value(), seen)
	case []any:
		for _, child := range x {
			traverse(child, seen)
		}
	case map[string]any:
		for _, child := range x {
			traverse(child, seen)
		}
	}
}

// Touch reads every container reachable from v so the current listener, if
// any, depends on all of them.
func Touch(v any) {
	traverse(v, make(map[any]bool))
}
