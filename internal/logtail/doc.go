// Package logtail reads the tail of the application log for the activity view.
//
// # Reading
//
// Read returns the last N lines of a file using a ring buffer of N strings, so
// memory stays bounded by N regardless of file size. A missing file returns
// nil, nil; the log simply has not been written yet.
//
//	lines, err := logtail.Read(cfg.LogPath(), 200)
//
// # Parsing
//
// The logger writes one JSON object per line. ParseLine pulls out the well
// known keys (time, level, msg, component, error) and keeps every other key as
// text in Fields, with Keys sorted for stable rendering:
//
//	{"level":"info","msg":"drain finished","component":"syncer","synced":2,"time":"..."}
//
// Lines that are not JSON (a panic trace, for example) come back with the
// whole line as Message so nothing is hidden.
package logtail
