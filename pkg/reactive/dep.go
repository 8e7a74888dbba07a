package reactive

// dep is a single observable dependency: a cell value, an object key, an
// object's key set or an array's contents.
type dep struct {
	rt   *Runtime
	subs []Listener
}

func newDep(rt *Runtime) *dep {
	return &dep{rt: rt}
}

// track subscribes the runtime's current listener, if any.
func (d *dep) track() {
	l := d.rt.listener
	if l == nil {
		return
	}
	d.subscribe(l)
	l.addSource(d)
}

// subscribe adds a listener, deduplicated by ID.
func (d *dep) subscribe(l Listener) {
	lid := l.ID()
	for _, existing := range d.subs {
		if existing.ID() == lid {
			return
		}
	}
	d.subs = append(d.subs, l)
}

func (d *dep) unsubscribe(l Listener) {
	lid := l.ID()
	for i, existing := range d.subs {
		if existing.ID() == lid {
			d.subs[i] = d.subs[len(d.subs)-1]
			d.subs = d.subs[:len(d.subs)-1]
			return
		}
	}
}

// trigger notifies every subscriber. Subscribers are copied first because
// MarkDirty may unsubscribe.
func (d *dep) trigger() {
	if len(d.subs) == 0 {
		return
	}
	subs := make([]Listener, len(d.subs))
	copy(subs, d.subs)
	for _, sub := range subs {
		sub.MarkDirty()
	}
}
