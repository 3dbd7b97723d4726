// Package app is the composition root for fieldtech.
//
// # Overview
//
// Open loads configuration and wires every component once, so the TUI and
// the CLI subcommands share the same construction:
//
//  1. Load ~/.config/fieldtech/config.toml and environment overrides
//  2. Open the rotating JSON log under <data_dir>/logs
//  3. Build the backend client and restore the saved session
//  4. Load the offline queue into the sync engine (a corrupt file is a
//     warning, not a failure)
//  5. Create the connectivity monitor and the attachments service
//
// Run additionally starts the optional metrics listener and the background
// poller, then blocks in the TUI.
//
// # Poller
//
// The poller probes the backend every poll interval. It drains the offline
// queue on the first successful probe and on every offline to online
// transition, and refreshes the work order cache on the ticks in between.
// Failed ticks back off exponentially up to five minutes.
//
// When the backend rejects the session the poller clears it and idles until
// the technician signs in again; queued updates are never dropped because of
// an expired token.
//
//	┌────────────┐   Check    ┌──────────────────────┐
//	│   Poller   │──────────► │ connectivity.Monitor │
//	└─────┬──────┘            └──────────────────────┘
//	      │ Drain / Refresh
//	      ▼
//	┌────────────┐  overlay   ┌─────────────┐   Snapshot   ┌──────┐
//	│   syncer   │──────────► │ state.Store │ ───────────► │  ui  │
//	└────────────┘            └─────────────┘              └──────┘
package app
