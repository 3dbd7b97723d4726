package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/logging"
	"github.com/five82/fieldtech/internal/metrics"
	"github.com/five82/fieldtech/internal/state"
	"github.com/five82/fieldtech/internal/workorder"
)

// Gateway is the remote half of synchronization. backend.Client implements it.
type Gateway interface {
	FetchWorkOrders(ctx context.Context, token string) ([]workorder.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, token string, id uuid.UUID, status workorder.Status, notes string) error
}

// Persister stores the queue as a whole snapshot. queue.Store implements it.
type Persister interface {
	Load() ([]workorder.PendingUpdate, error)
	Save(items []workorder.PendingUpdate) error
}

// Outcome says what happened to a submitted update.
type Outcome string

const (
	// OutcomeSynced means the server accepted the write.
	OutcomeSynced Outcome = "synced"
	// OutcomeQueued means the write is waiting in the offline queue.
	OutcomeQueued Outcome = "queued"
)

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Attempted int
	Synced    int
	Remaining int
}

// Options tunes an Engine. The zero value is the default policy.
type Options struct {
	// QueueOnUnauthorized queues updates that fail with 401 like any other
	// failure instead of returning the error.
	QueueOnUnauthorized bool
	Logger              logrus.FieldLogger
	Metrics             *metrics.Metrics
	// Now overrides time.Now for enqueue timestamps.
	Now func() time.Time
}

// Engine owns the offline queue and keeps the cache in step with it.
//
// opMu serializes every mutating operation end to end, network calls
// included, so a submit and a drain never interleave. mu guards the queue
// slice itself so readers never wait on the network.
type Engine struct {
	opMu sync.Mutex

	mu    sync.RWMutex
	queue []workorder.PendingUpdate

	store   Persister
	gateway Gateway
	cache   *state.Store
	opts    Options
	logger  logrus.FieldLogger
}

// New builds an Engine and loads the persisted queue. A queue that cannot be
// read is logged and the engine starts empty; the error is returned for the
// caller to display but the engine is usable either way.
func New(store Persister, gateway Gateway, cache *state.Store, opts Options) (*Engine, error) {
	if cache == nil {
		cache = &state.Store{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		store:   store,
		gateway: gateway,
		cache:   cache,
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger).WithField("component", "syncer"),
	}

	items, err := store.Load()
	if err != nil {
		e.logger.WithError(err).Warn("offline queue unreadable, starting empty")
		items = nil
	}
	e.queue = items
	e.publish(items)
	if len(items) > 0 {
		e.logger.WithField("pending", len(items)).Info("loaded offline queue")
	}
	return e, err
}

// Cache returns the work-order cache the engine writes to.
func (e *Engine) Cache() *state.Store {
	return e.cache
}

// SubmitUpdate records a status and notes change for one work order.
//
// When online the write is attempted first. Success clears any queued entry
// for the work order and refreshes the cache. A transport or server failure
// falls back to queuing. An unauthorized failure is returned without queuing
// unless QueueOnUnauthorized is set. When offline the network is skipped and
// the update replaces any queued entry for the same work order.
func (e *Engine) SubmitUpdate(ctx context.Context, token string, workOrderID uuid.UUID, status workorder.Status, notes string, online bool) (Outcome, error) {
	if workOrderID == uuid.Nil {
		e.opts.Metrics.ObserveSubmit("rejected")
		return "", apperr.New(apperr.InvalidInput, "work order id required")
	}
	if !status.Valid() {
		e.opts.Metrics.ObserveSubmit("rejected")
		return "", apperr.Newf(apperr.InvalidInput, "unknown status %q", status)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	log := e.logger.WithFields(logrus.Fields{
		"work_order_id": workOrderID,
		"status":        status,
	})

	if online {
		err := e.gateway.UpdateWorkOrder(ctx, token, workOrderID, status, notes)
		switch {
		case err == nil:
			if e.remove(workOrderID) {
				_ = e.persist()
			}
			e.refresh(ctx, token)
			e.opts.Metrics.ObserveSubmit(string(OutcomeSynced))
			log.Info("update synced")
			return OutcomeSynced, nil
		case apperr.IsUnauthorized(err) && !e.opts.QueueOnUnauthorized:
			e.opts.Metrics.ObserveSubmit("unauthorized")
			log.WithError(err).Warn("update rejected, sign-in required")
			return "", err
		default:
			log.WithError(err).Warn("update failed, queuing")
		}
	}

	e.enqueue(workorder.NewPendingUpdate(workOrderID, status, notes, e.opts.Now()))
	_ = e.persist()
	e.opts.Metrics.ObserveSubmit(string(OutcomeQueued))
	log.WithField("pending", e.PendingCount()).Info("update queued")
	return OutcomeQueued, nil
}

// Drain replays the queue once, oldest first. Successful entries are dropped
// and failed ones keep their relative order. The queue is saved once after
// the pass and the cache is then refreshed from the server. Offline or with
// an empty queue it does nothing.
//
// An unauthorized failure stops the pass: the failing entry and everything
// after it stay queued and the error is returned. With QueueOnUnauthorized it
// counts as an ordinary failure.
func (e *Engine) Drain(ctx context.Context, token string, online bool) (DrainResult, error) {
	if !online {
		return DrainResult{Remaining: e.PendingCount()}, nil
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	items := e.Pending()
	if len(items) == 0 {
		return DrainResult{}, nil
	}

	started := time.Now()
	var (
		result  DrainResult
		kept    = make([]workorder.PendingUpdate, 0, len(items))
		stopErr error
	)
	for i, item := range items {
		result.Attempted++
		err := e.gateway.UpdateWorkOrder(ctx, token, item.WorkOrderID, item.Status, item.Notes)
		if err == nil {
			result.Synced++
			continue
		}
		kept = append(kept, item)
		entry := e.logger.WithFields(logrus.Fields{"work_order_id": item.WorkOrderID, "pending_id": item.ID}).WithError(err)
		if apperr.IsUnauthorized(err) && !e.opts.QueueOnUnauthorized {
			entry.Warn("drain stopped, sign-in required")
			kept = append(kept, items[i+1:]...)
			stopErr = err
			break
		}
		entry.Warn("queued update still failing")
	}

	e.mu.Lock()
	e.queue = kept
	e.mu.Unlock()
	_ = e.persist()

	result.Remaining = len(kept)
	e.opts.Metrics.ObserveDrain(result.Synced, result.Attempted-result.Synced, time.Since(started))
	e.logger.WithFields(logrus.Fields{
		"attempted": result.Attempted,
		"synced":    result.Synced,
		"remaining": result.Remaining,
	}).Info("drain finished")

	if stopErr != nil {
		return result, stopErr
	}
	e.refresh(ctx, token)
	return result, nil
}

// Refresh replaces the cache with the server's current work orders. Queued
// updates keep presenting through the cache overlay.
func (e *Engine) Refresh(ctx context.Context, token string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.refresh(ctx, token)
}

// Discard drops the queued entry for workOrderID, for updates the server will
// never accept (a deleted work order, for example). It reports whether an
// entry was removed.
func (e *Engine) Discard(workOrderID uuid.UUID) (bool, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if !e.remove(workOrderID) {
		return false, nil
	}
	e.logger.WithField("work_order_id", workOrderID).Info("queued update discarded")
	return true, e.persist()
}

// Pending returns a copy of the queue in replay order.
func (e *Engine) Pending() []workorder.PendingUpdate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.queue) == 0 {
		return nil
	}
	out := make([]workorder.PendingUpdate, len(e.queue))
	copy(out, e.queue)
	return out
}

// PendingCount returns the queue length.
func (e *Engine) PendingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.queue)
}

// PendingFor returns the queued entry for workOrderID, if any.
func (e *Engine) PendingFor(workOrderID uuid.UUID) (workorder.PendingUpdate, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, item := range e.queue {
		if item.WorkOrderID == workOrderID {
			return item, true
		}
	}
	return workorder.PendingUpdate{}, false
}

func (e *Engine) refresh(ctx context.Context, token string) error {
	orders, err := e.gateway.FetchWorkOrders(ctx, token)
	e.cache.Update(orders, err)
	if err != nil {
		e.logger.WithError(err).Warn("work order refresh failed")
		return err
	}
	return nil
}

// enqueue removes any entry for the same work order and appends item.
func (e *Engine) enqueue(item workorder.PendingUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = without(e.queue, item.WorkOrderID)
	e.queue = append(e.queue, item)
}

func (e *Engine) remove(workOrderID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	before := len(e.queue)
	e.queue = without(e.queue, workOrderID)
	return len(e.queue) != before
}

// persist saves the queue and republishes it to the cache. A failed save is
// logged; the in-memory queue stays authoritative until the next save.
func (e *Engine) persist() error {
	items := e.Pending()
	err := e.store.Save(items)
	if err != nil {
		e.logger.WithError(err).WithField("pending", len(items)).Error("offline queue not saved")
	}
	e.publish(items)
	return err
}

// publish hands a copy of the queue to the cache. It runs without e.mu held
// because cache subscribers may call back into the engine.
func (e *Engine) publish(items []workorder.PendingUpdate) {
	e.cache.SetPending(items)
	e.opts.Metrics.SetPending(len(items))
}

func without(items []workorder.PendingUpdate, workOrderID uuid.UUID) []workorder.PendingUpdate {
	out := items[:0:0]
	for _, item := range items {
		if item.WorkOrderID != workOrderID {
			out = append(out, item)
		}
	}
	return out
}
