// Package ui provides the Bubble Tea terminal interface for fieldtech.
//
// # Views
//
//   - Work orders: list on the left, details and photos on the right
//   - Editor: status selector and notes for one work order
//   - Sign in: email and password, shown at start without a session and
//     whenever the backend rejects the token
//   - Activity: the tail of the structured log file
//
// # Data Flow
//
// The model never fetches work orders itself. A background poller keeps the
// state.Store fresh; the model subscribes to the store and reads a snapshot
// whenever it changes:
//
//	poller ──► syncer.Engine ──► state.Store ──► Subscribe ──► cacheChangedMsg ──► View
//
// User actions that touch the network (save, sync, sign in, photo listing)
// run as tea.Cmds and report back through result messages, so the event loop
// never blocks.
//
// # Offline Edits
//
// Saving while offline, or when the write fails for a reason other than an
// expired session, queues the edit. Queued edits show immediately through the
// cache overlay and carry a ⟳ badge until the server confirms them. The o key
// forces offline mode; r drains the queue and refreshes.
//
// # Key Bindings
//
// Bindings live in keys.go as bubbles/key bindings and feed both input
// handling and the help overlay (h or ?).
package ui
