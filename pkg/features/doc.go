// Package features groups the optional store features. Each feature is
// installed with Store.Use and works only through the public get, set and
// watch APIs of a store.
//
// # Subsystems
//
//   - cache: persists state to a storage driver and reloads external changes
//   - history: undo and redo over snapshots taken after each flush
//   - sync: relays state between processes through a websocket hub
//
// # Usage
//
//	st := storage.NewMemory()
//	h := history.New(50)
//	t.SetStore(teddy.Def("shop", "cart"), teddy.Config{
//	    State:    map[string]any{"products": []any{}},
//	    Features: []teddy.Feature{cache.New(st), h},
//	})
//
// Features installed from Config run before its watchers are registered.
package features
