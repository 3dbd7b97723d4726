// Package workorder holds the domain types shared by the backend client, the
// queue store, the cache and the sync engine.
//
// WorkOrder is server-owned and replaced wholesale on every fetch.
// PendingUpdate is client-owned and lives in the offline queue until the
// server confirms it. ApplyOverlay is the read-time projection that makes a
// pending edit visible without ever writing it back into the cached record.
package workorder
