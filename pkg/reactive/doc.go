// Package reactive provides the observable primitives teddy stores are built on.
//
// A Runtime owns the tracking context and the flush queue. Cells (Ref), containers
// (Object, Array) and derivations (Computed) created from a Runtime record which
// listener read them, and notify those listeners when they change.
//
// Watch subscriptions never run inline with a mutation. A change marks the
// subscription dirty and enqueues it once; Flush drains the queue, so any number
// of synchronous mutations between two flushes produce a single handler call:
//
//	rt := reactive.NewRuntime()
//	state := rt.Ref(map[string]any{"count": 0})
//
//	sub := rt.Watch(func() any { return state.Value() }, func(newV, oldV any) {
//	    fmt.Println("changed:", reactive.ToRaw(newV))
//	}, reactive.WatchOptions{Deep: true})
//	defer sub.Stop()
//
//	obj := state.Peek().(*reactive.Object)
//	obj.Set("count", 1)
//	obj.Set("count", 2)
//	rt.Flush() // prints once
//
// A Runtime and everything created from it must be used from one goroutine at a
// time. Callers that share a runtime across goroutines serialize access themselves.
package reactive
