// Package state provides the local work-order cache read by the presentation layer.
//
// # Overview
//
// The Store holds two things: the work orders returned by the last successful
// fetch, and the set of queued (unconfirmed) updates. Reads combine them at
// read time: Get, List and Snapshot apply each queued update as an overlay on
// top of the fetched record. The overlay is never written back, so the
// fetched data stays authoritative and a later fetch replaces it wholesale.
//
// # Architecture
//
//	Writer (sync engine):            Readers (UI, CLI):
//	┌──────────────────────┐        ┌──────────────────────┐
//	│ FetchWorkOrders()    │        │                      │
//	│      ↓               │        │                      │
//	│ store.Update()       │───────→│ store.List()         │
//	│ store.SetPending()   │(mutex) │ store.Get(id)        │
//	│                      │        │ store.Snapshot()     │
//	└──────────────────────┘        └──────────────────────┘
//	                 │
//	                 └── Subscribe(fn) callbacks after each write
//
// # Update Semantics
//
//	// Success case: replace the backing list
//	store.Update(orders, nil)
//	→ orders replaced, index rebuilt
//	→ LastError = nil, ConsecutiveFailures = 0
//
//	// Error case: keep old data, record error
//	store.Update(nil, err)
//	→ orders unchanged
//	→ LastError = err, ConsecutiveFailures++
//
// Two consecutive failures mark the snapshot offline (IsOffline).
//
// # Subscriptions
//
// Subscribe registers a callback that receives a fresh Snapshot after every
// Update or SetPending. Callbacks run on the writer's goroutine after the lock
// is released; they should hand the snapshot off (for example into a
// tea.Program via Send) rather than do work inline.
//
// # Defensive Copying
//
// Snapshot and List return copies. Mutating a returned slice never affects the
// store or other readers.
//
// The zero value is ready to use:
//
//	store := &state.Store{}
package state
