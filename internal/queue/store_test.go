package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/workorder"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "data", DefaultFilename))
}

func pending(status workorder.Status, notes string) workorder.PendingUpdate {
	return workorder.NewPendingUpdate(uuid.New(), status, notes, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
}

func TestLoad_MissingSnapshotIsEmpty(t *testing.T) {
	s := newTestStore(t)
	items, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSaveThenLoad_RoundTripsInOrder(t *testing.T) {
	s := newTestStore(t)
	a := pending(workorder.StatusInProgress, "on site")
	b := pending(workorder.StatusCompleted, "done")

	require.NoError(t, s.Save([]workorder.PendingUpdate{a, b}))

	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].ID)
	assert.Equal(t, a.WorkOrderID, items[0].WorkOrderID)
	assert.Equal(t, workorder.StatusInProgress, items[0].Status)
	assert.True(t, a.EnqueuedAt.Equal(items[0].EnqueuedAt))
	assert.Equal(t, b.ID, items[1].ID)
}

func TestSave_WritesVersionedDocument(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save([]workorder.PendingUpdate{pending(workorder.StatusNew, "")}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.JSONEq(t, "1", string(doc["version"]))
	assert.Contains(t, doc, "items")
	assert.Contains(t, doc, "savedAt")

	var items []map[string]any
	require.NoError(t, json.Unmarshal(doc["items"], &items))
	require.Len(t, items, 1)
	for _, field := range []string{"id", "workOrderId", "status", "notes", "enqueuedAt"} {
		assert.Contains(t, items[0], field)
	}
}

func TestSave_EmptyQueueOverwritesSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save([]workorder.PendingUpdate{pending(workorder.StatusNew, "x")}))
	require.NoError(t, s.Save(nil))

	items, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoad_CorruptSnapshotFailsSoft(t *testing.T) {
	cases := map[string]string{
		"garbage":         "{not json",
		"empty":           "   ",
		"future version":  `{"version": 99, "items": []}`,
		"missing version": `{"items": []}`,
		"truncated":       `{"version": 1, "items": [{"id": "`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
			require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o600))

			items, err := s.Load()
			assert.Empty(t, items)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.Persistence))
			assert.True(t, apperr.IsRecoverable(err))
		})
	}
}

func TestLoad_AcceptsLegacyArray(t *testing.T) {
	s := newTestStore(t)
	a := pending(workorder.StatusAssigned, "legacy")
	raw, err := json.Marshal([]workorder.PendingUpdate{a})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), raw, 0o600))

	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)
}

func TestLoad_CollapsesDuplicateWorkOrders(t *testing.T) {
	s := newTestStore(t)
	wo := uuid.New()
	first := workorder.NewPendingUpdate(wo, workorder.StatusInProgress, "first", time.Now())
	other := pending(workorder.StatusNew, "other")
	second := workorder.NewPendingUpdate(wo, workorder.StatusCompleted, "second", time.Now())
	orphan := workorder.PendingUpdate{ID: uuid.New(), Status: workorder.StatusNew}

	require.NoError(t, s.Save([]workorder.PendingUpdate{first, other, second, orphan}))

	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, other.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
	assert.Equal(t, "second", items[1].Notes)
}

func TestLoad_IgnoresTornTempFile(t *testing.T) {
	s := newTestStore(t)
	good := pending(workorder.StatusInProgress, "persisted")
	require.NoError(t, s.Save([]workorder.PendingUpdate{good}))

	// A crash mid-write leaves a partial temp file next to the snapshot.
	torn := filepath.Join(filepath.Dir(s.Path()), DefaultFilename+".12345.tmp")
	require.NoError(t, os.WriteFile(torn, []byte(`{"version":1,"items":[{"id":`), 0o600))

	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, good.ID, items[0].ID)
}

func TestSave_FailureKeepsPreviousSnapshot(t *testing.T) {
	s := newTestStore(t)
	good := pending(workorder.StatusInProgress, "persisted")
	require.NoError(t, s.Save([]workorder.PendingUpdate{good}))

	// Replace the data directory's snapshot path with a directory so rename fails.
	blocked := NewStore(filepath.Join(filepath.Dir(s.Path()), "blocked"))
	require.NoError(t, os.MkdirAll(filepath.Join(blocked.Path(), "child"), 0o755))

	err := blocked.Save([]workorder.PendingUpdate{pending(workorder.StatusNew, "lost")})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Persistence))

	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, good.ID, items[0].ID)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "blocked.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
