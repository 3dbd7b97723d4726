package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/connectivity"
	"github.com/five82/fieldtech/internal/logging"
	"github.com/five82/fieldtech/internal/syncer"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

var errOffline = errors.New("backend unreachable")

type syncEngine interface {
	Drain(ctx context.Context, token string, online bool) (syncer.DrainResult, error)
	Refresh(ctx context.Context, token string) error
	PendingCount() int
}

type reachability interface {
	Check(ctx context.Context) (online bool, changed bool)
	Changes() <-chan connectivity.Transition
}

type tokenSource interface {
	Token() (string, bool)
}

// Poller probes the backend, replays the queue when connectivity comes back,
// and keeps the cache fresh. Failed ticks back off exponentially; a reconnect
// reported by the monitor (including release of forced offline) cuts the
// wait short.
type Poller struct {
	engine   syncEngine
	monitor  reachability
	tokens   tokenSource
	interval time.Duration
	logger   logrus.FieldLogger

	// OnUnauthorized runs when the backend rejects the token. The poller
	// idles until a new token is available.
	OnUnauthorized func(error)

	needsDrain bool
}

// NewPoller builds a Poller. A non-positive interval uses the default.
func NewPoller(engine syncEngine, monitor reachability, tokens tokenSource, interval time.Duration, logger logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		engine:   engine,
		monitor:  monitor,
		tokens:   tokens,
		interval: interval,
		logger:   logging.OrDiscard(logger).WithField("component", "poller"),
		// The first successful tick replays whatever the last run left queued.
		needsDrain: true,
	}
}

// Start runs the poller in a goroutine until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	go p.Run(ctx)
}

// Run blocks, ticking until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	failures := 0
	for {
		if err := p.Tick(ctx); err != nil {
			failures++
		} else {
			failures = 0
		}

		wait := calculateBackoff(failures, p.interval)
		if failures > 0 {
			p.logger.WithFields(logrus.Fields{"failures": failures, "next_in": wait}).Debug("backing off")
		}
		if !p.wait(ctx, wait) {
			return
		}
	}
}

// wait sleeps for d or until the monitor reports it is back online. It
// returns false once ctx is done.
func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case t := <-p.monitor.Changes():
			if p.observe(t) {
				return true
			}
		}
	}
}

// observe records a transition and reports whether it was a reconnect.
func (p *Poller) observe(t connectivity.Transition) bool {
	if !t.Online {
		p.logger.WithError(t.Err).Debug("went offline")
		return false
	}
	p.needsDrain = true
	return true
}

// takeChanges consumes a transition the last probe may have produced.
func (p *Poller) takeChanges() {
	select {
	case t := <-p.monitor.Changes():
		p.observe(t)
	default:
	}
}

// Tick runs one poll cycle. Signed out, it only probes. Coming back online
// (including the first successful probe) schedules a drain, which runs on the
// first tick that also has a token; the drain refreshes the cache itself.
func (p *Poller) Tick(ctx context.Context) error {
	online, _ := p.monitor.Check(ctx)
	p.takeChanges()
	if !online {
		return errOffline
	}

	token, ok := p.tokens.Token()
	if !ok {
		return nil
	}

	if p.needsDrain && p.engine.PendingCount() > 0 {
		res, err := p.engine.Drain(ctx, token, true)
		if err != nil {
			return p.handle(err)
		}
		p.needsDrain = false
		p.logger.WithFields(logrus.Fields{
			"synced":    res.Synced,
			"remaining": res.Remaining,
		}).Info("replayed queue after reconnect")
		return nil
	}
	p.needsDrain = false

	if err := p.engine.Refresh(ctx, token); err != nil {
		return p.handle(err)
	}
	return nil
}

func (p *Poller) handle(err error) error {
	if apperr.IsUnauthorized(err) {
		p.logger.WithError(err).Warn("session rejected")
		if p.OnUnauthorized != nil {
			p.OnUnauthorized(err)
		}
		return nil
	}
	return err
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
