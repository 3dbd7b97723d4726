// Package cli defines the fieldtech command tree.
//
// The root command opens the TUI. Subcommands cover the same operations for
// scripts and quick checks from a shell:
//
//	fieldtech login                  sign in (form, or --email/--password-stdin)
//	fieldtech list                   work orders with queued edits applied
//	fieldtech update <id> --status   change status and notes, queued when offline
//	fieldtech sync                   replay the offline queue now
//	fieldtech pending                show queued updates
//	fieldtech discard <id>           drop a queued update
//	fieldtech attach <id> <file>     upload a photo
//	fieldtech photos <id>            list photos with signed links
//	fieldtech logout                 remove the saved session
//
// Every command opens the application through app.Open, so they share the
// queue file, session and log with the TUI.
package cli
