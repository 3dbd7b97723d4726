// Package queue persists the offline update queue as a single JSON snapshot.
//
// Every Save rewrites the whole document through a temp file in the same
// directory followed by a rename, so a crash leaves either the previous
// snapshot or the new one on disk, never a mix of both.
package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/workorder"
)

// DefaultFilename is the snapshot name used inside the data directory.
const DefaultFilename = "work_order_update_queue.json"

// SchemaVersion is written into every snapshot.
const SchemaVersion = 1

// document is the on-disk layout.
type document struct {
	Version int                       `json:"version"`
	SavedAt time.Time                 `json:"savedAt"`
	Items   []workorder.PendingUpdate `json:"items"`
}

// Store reads and writes the queue snapshot at a fixed path.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore returns a Store backed by path. The parent directory is created on
// first Save.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted queue. A missing snapshot is an empty queue with
// a nil error. An unreadable or corrupt snapshot is also an empty queue, paired
// with a recoverable Persistence error the caller should log and move past.
func (s *Store) Load() ([]workorder.PendingUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.Persistence, "read queue snapshot", err)
	}

	items, err := decode(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "decode queue snapshot", err)
	}
	return normalize(items), nil
}

// Save replaces the snapshot with items.
func (s *Store) Save(items []workorder.PendingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if items == nil {
		items = []workorder.PendingUpdate{}
	}
	data, err := json.MarshalIndent(document{
		Version: SchemaVersion,
		SavedAt: s.now().UTC(),
		Items:   items,
	}, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Persistence, "encode queue snapshot", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return apperr.Wrap(apperr.Persistence, "write queue snapshot", err)
	}
	return nil
}

func decode(data []byte) ([]workorder.PendingUpdate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("snapshot is empty")
	}

	// Snapshots written before versioning were a bare array.
	if trimmed[0] == '[' {
		var legacy []workorder.PendingUpdate
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("parse legacy snapshot: %w", err)
		}
		return legacy, nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if doc.Version < 1 || doc.Version > SchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	return doc.Items, nil
}

// normalize drops entries without a work order and keeps only the last entry
// per work order, at that entry's position.
func normalize(items []workorder.PendingUpdate) []workorder.PendingUpdate {
	last := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.WorkOrderID == uuid.Nil {
			continue
		}
		last[item.WorkOrderID] = i
	}
	if len(last) == 0 {
		return nil
	}
	out := make([]workorder.PendingUpdate, 0, len(last))
	for i, item := range items {
		if item.WorkOrderID == uuid.Nil || last[item.WorkOrderID] != i {
			continue
		}
		out = append(out, item)
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	// Persist the rename itself. Not every platform allows syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
