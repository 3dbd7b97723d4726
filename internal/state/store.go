package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/fieldtech/internal/workorder"
)

// offlineAfter is the number of consecutive failed fetches after which the
// snapshot reports the backend as offline.
const offlineAfter = 2

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	WorkOrders          []workorder.WorkOrder // overlays applied, server order
	Pending             []workorder.PendingUpdate
	HasData             bool
	LastUpdated         time.Time // last successful fetch
	LastAttempt         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has been unreachable for multiple fetches.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= offlineAfter
}

// PendingCount returns the number of queued updates.
func (s Snapshot) PendingCount() int {
	return len(s.Pending)
}

// IsPending reports whether id has an unconfirmed update.
func (s Snapshot) IsPending(id uuid.UUID) bool {
	_, ok := s.PendingFor(id)
	return ok
}

// PendingFor returns the queued update for id, if any.
func (s Snapshot) PendingFor(id uuid.UUID) (workorder.PendingUpdate, bool) {
	for _, p := range s.Pending {
		if p.WorkOrderID == id {
			return p, true
		}
	}
	return workorder.PendingUpdate{}, false
}

// Store holds the last fetched work orders and the overlays for queued edits.
// The sync engine is its only writer; any goroutine may read.
type Store struct {
	mu          sync.RWMutex
	orders      []workorder.WorkOrder
	index       map[uuid.UUID]int
	pending     []workorder.PendingUpdate
	overlays    map[uuid.UUID]workorder.PendingUpdate
	hasData     bool
	lastUpdated time.Time
	lastAttempt time.Time
	lastError   error
	failures    int

	subs    map[int]func(Snapshot)
	nextSub int
}

// Update replaces the cached work orders wholesale. When err is non-nil the
// previous data is kept but the error is recorded for visibility.
func (s *Store) Update(orders []workorder.WorkOrder, err error) {
	s.mu.Lock()
	now := time.Now()
	s.lastAttempt = now
	if err != nil {
		s.lastError = err
		s.failures++
	} else {
		s.orders = cloneOrders(orders)
		s.index = make(map[uuid.UUID]int, len(s.orders))
		for i, wo := range s.orders {
			s.index[wo.ID] = i
		}
		s.hasData = true
		s.lastUpdated = now
		s.lastError = nil
		s.failures = 0
	}
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

// SetPending replaces the set of queued updates used for overlays.
func (s *Store) SetPending(items []workorder.PendingUpdate) {
	s.mu.Lock()
	s.pending = clonePending(items)
	s.overlays = make(map[uuid.UUID]workorder.PendingUpdate, len(items))
	for _, p := range items {
		s.overlays[p.WorkOrderID] = p
	}
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

// Get returns the work order with any pending overlay applied.
func (s *Store) Get(id uuid.UUID) (workorder.WorkOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wo, ok := s.rawLocked(id)
	if !ok {
		return workorder.WorkOrder{}, false
	}
	if p, pending := s.overlays[id]; pending {
		return workorder.ApplyOverlay(wo, p), true
	}
	return wo, true
}

// Authoritative returns the work order exactly as last fetched, ignoring overlays.
func (s *Store) Authoritative(id uuid.UUID) (workorder.WorkOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawLocked(id)
}

// List returns every cached work order in server order with overlays applied.
func (s *Store) List() []workorder.WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return workorder.ApplyOverlays(s.orders, s.overlays)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change. fn runs on
// the writer's goroutine and must not block. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]func(Snapshot))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) rawLocked(id uuid.UUID) (workorder.WorkOrder, bool) {
	i, ok := s.index[id]
	if !ok {
		return workorder.WorkOrder{}, false
	}
	return s.orders[i], true
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		WorkOrders:          workorder.ApplyOverlays(s.orders, s.overlays),
		Pending:             clonePending(s.pending),
		HasData:             s.hasData,
		LastUpdated:         s.lastUpdated,
		LastAttempt:         s.lastAttempt,
		ConsecutiveFailures: s.failures,
	}
	if s.lastError != nil {
		snap.LastError = fmt.Errorf("%w", s.lastError)
	}
	return snap
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	if len(s.subs) == 0 {
		return nil
	}
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

func cloneOrders(items []workorder.WorkOrder) []workorder.WorkOrder {
	if len(items) == 0 {
		return nil
	}
	dup := make([]workorder.WorkOrder, len(items))
	copy(dup, items)
	return dup
}

func clonePending(items []workorder.PendingUpdate) []workorder.PendingUpdate {
	if len(items) == 0 {
		return nil
	}
	dup := make([]workorder.PendingUpdate, len(items))
	copy(dup, items)
	return dup
}
