// Package syncer is the offline queue and replay engine.
//
// # Model
//
// The engine holds an ordered queue of PendingUpdate values, at most one per
// work order, mirrored to disk through a Persister after every change. The
// work-order cache (state.Store) holds the last server fetch and is told about
// the queue so it can overlay queued edits at read time.
//
// # Submitting
//
// SubmitUpdate takes the caller's view of connectivity as a plain bool:
//
//	outcome, err := engine.SubmitUpdate(ctx, token, id, workorder.StatusCompleted, notes, monitor.Online())
//
// Online, the write goes to the server first and only lands in the queue if
// that fails. Offline, it goes straight to the queue. Either way the caller
// sees success; OutcomeQueued tells the UI to show a pending marker.
//
// A 401 is different: by default it is returned and nothing is queued, since
// replaying with the same token cannot succeed. Options.QueueOnUnauthorized
// queues it anyway.
//
// # Draining
//
// Drain makes one pass over the queue in insertion order, keeps whatever
// failed in its original relative order, saves once, and refreshes the cache.
// It never retries on its own; the application calls it again on reconnect or
// when the user asks.
//
// # Concurrency
//
// Every mutating call runs under one operation lock, network round trips
// included. Pending, PendingCount and PendingFor only take a read lock on the
// queue and never wait on the network.
package syncer
