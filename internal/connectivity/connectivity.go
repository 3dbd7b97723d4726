// Package connectivity answers "should we try the network right now?".
//
// The sync engine takes the answer as a plain bool; this package produces it.
// Monitor probes the backend and only reports offline after consecutive
// failures, so a single dropped request does not flip the UI. Changes in the
// reported state are delivered on Changes; the poller listens there to replay
// the queue as soon as the backend is back or forced offline is released.
package connectivity

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/five82/fieldtech/internal/logging"
)

// Signal is a boolean online/offline feed.
type Signal interface {
	Online() bool
}

// Prober checks reachability. backend.Client.Ping satisfies it.
type Prober interface {
	Ping(ctx context.Context) error
}

// Transition records a change of the reported state. Err is the probe error
// that took the monitor offline, if any.
type Transition struct {
	Online bool
	Err    error
}

// failureThreshold matches the cache's offline rule.
const failureThreshold = 2

// Monitor is a Signal driven by probes.
type Monitor struct {
	prober Prober
	logger logrus.FieldLogger

	mu       sync.RWMutex
	online   bool
	forced   bool
	failures int
	changes  chan Transition
}

// NewMonitor returns a Monitor that starts online. A nil logger discards.
func NewMonitor(p Prober, logger logrus.FieldLogger) *Monitor {
	return &Monitor{
		prober:  p,
		logger:  logging.OrDiscard(logger).WithField("component", "connectivity"),
		online:  true,
		changes: make(chan Transition, 1),
	}
}

// Online reports the current state. A forced-offline monitor is never online.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online && !m.forced
}

// Changes delivers transitions. Only the latest undelivered transition is kept.
func (m *Monitor) Changes() <-chan Transition {
	return m.changes
}

// SetForcedOffline pins the monitor offline (or releases it). Releasing does
// not imply online; the last probe result applies again.
func (m *Monitor) SetForcedOffline(forced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.online && !m.forced
	m.forced = forced
	after := m.online && !m.forced
	if before != after {
		m.logger.WithField("forced", forced).Info("offline mode changed")
		m.emitLocked(Transition{Online: after})
	}
}

// ForcedOffline reports whether SetForcedOffline(true) is in effect.
func (m *Monitor) ForcedOffline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forced
}

// Check probes once and updates the state. It returns the reported state and
// whether it changed. A forced-offline monitor does not probe.
func (m *Monitor) Check(ctx context.Context) (online bool, changed bool) {
	if m.ForcedOffline() {
		return false, false
	}
	err := m.prober.Ping(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.online && !m.forced
	if err != nil {
		m.failures++
		if m.failures >= failureThreshold {
			m.online = false
		}
	} else {
		m.failures = 0
		m.online = true
	}
	after := m.online && !m.forced

	if before != after {
		log := m.logger.WithFields(logrus.Fields{"online": after, "failures": m.failures})
		if err != nil {
			log.WithError(err).Warn("backend unreachable")
		} else {
			log.Info("backend reachable")
		}
		m.emitLocked(Transition{Online: after, Err: err})
	}
	return after, before != after
}

func (m *Monitor) emitLocked(t Transition) {
	select {
	case m.changes <- t:
		return
	default:
	}
	select {
	case <-m.changes:
	default:
	}
	select {
	case m.changes <- t:
	default:
	}
}
