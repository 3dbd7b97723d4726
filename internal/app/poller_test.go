package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/connectivity"
	"github.com/five82/fieldtech/internal/syncer"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 30 * time.Second},
		{"negative failures", -1, 30 * time.Second},
		{"one failure", 1, 60 * time.Second},
		{"two failures", 2, 120 * time.Second},
		{"three failures", 3, 240 * time.Second},
		{"four failures capped", 4, 5 * time.Minute}, // Would be 480s, capped to 300s
		{"many failures capped", 10, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 64; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type fakeEngine struct {
	mu         sync.Mutex
	pending    int
	drains     int
	refreshes  int
	drainErr   error
	refreshErr error
}

func (f *fakeEngine) Drain(context.Context, string, bool) (syncer.DrainResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drains++
	if f.drainErr != nil {
		return syncer.DrainResult{Remaining: f.pending}, f.drainErr
	}
	res := syncer.DrainResult{Attempted: f.pending, Synced: f.pending}
	f.pending = 0
	return res, nil
}

func (f *fakeEngine) Refresh(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeEngine) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeEngine) setPending(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = n
}

func (f *fakeEngine) counts() (drains, refreshes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drains, f.refreshes
}

// fakeMonitor replays a script of probe results and reports transitions the
// way connectivity.Monitor does.
type fakeMonitor struct {
	online  []bool
	current bool
	changes chan connectivity.Transition
}

func newFakeMonitor(online ...bool) *fakeMonitor {
	return &fakeMonitor{online: online, current: true, changes: make(chan connectivity.Transition, 1)}
}

func (m *fakeMonitor) Check(context.Context) (bool, bool) {
	v := m.online[0]
	if len(m.online) > 1 {
		m.online = m.online[1:]
	}
	changed := v != m.current
	m.current = v
	if changed {
		select {
		case <-m.changes:
		default:
		}
		m.changes <- connectivity.Transition{Online: v}
	}
	return v, changed
}

func (m *fakeMonitor) Changes() <-chan connectivity.Transition { return m.changes }

type okProber struct{}

func (okProber) Ping(context.Context) error { return nil }

type fakeTokens struct{ token string }

func (f *fakeTokens) Token() (string, bool) { return f.token, f.token != "" }

func TestPollerTick_DrainsOnReconnect(t *testing.T) {
	eng := &fakeEngine{pending: 2}
	mon := newFakeMonitor(false, true, true)
	p := NewPoller(eng, mon, &fakeTokens{token: "tok"}, time.Second, nil)

	if err := p.Tick(context.Background()); !errors.Is(err, errOffline) {
		t.Fatalf("offline tick error = %v, want errOffline", err)
	}
	if eng.drains != 0 || eng.refreshes != 0 {
		t.Fatalf("offline tick touched the engine: %+v", eng)
	}

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("reconnect tick error = %v", err)
	}
	if eng.drains != 1 || eng.refreshes != 0 {
		t.Fatalf("reconnect tick: drains=%d refreshes=%d, want 1/0", eng.drains, eng.refreshes)
	}

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("steady tick error = %v", err)
	}
	if eng.drains != 1 || eng.refreshes != 1 {
		t.Fatalf("steady tick: drains=%d refreshes=%d, want 1/1", eng.drains, eng.refreshes)
	}
}

func TestPollerTick_SignedOutOnlyProbes(t *testing.T) {
	eng := &fakeEngine{pending: 1}
	tokens := &fakeTokens{}
	p := NewPoller(eng, newFakeMonitor(true), tokens, time.Second, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error = %v", err)
	}
	if eng.drains != 0 || eng.refreshes != 0 {
		t.Fatalf("signed-out tick touched the engine: %+v", eng)
	}

	// The drain scheduled by the reconnect runs once a token shows up.
	tokens.token = "tok"
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error = %v", err)
	}
	if eng.drains != 1 {
		t.Fatalf("drains = %d, want 1 after sign-in", eng.drains)
	}
}

func TestPollerTick_UnauthorizedCallsHook(t *testing.T) {
	eng := &fakeEngine{pending: 1, drainErr: apperr.New(apperr.Unauthorized, "expired")}
	p := NewPoller(eng, newFakeMonitor(true), &fakeTokens{token: "tok"}, time.Second, nil)

	var hooked error
	p.OnUnauthorized = func(err error) { hooked = err }

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error = %v, unauthorized should not back off", err)
	}
	if !apperr.IsUnauthorized(hooked) {
		t.Fatalf("OnUnauthorized got %v", hooked)
	}

	// Still pending a drain; it retries on the next tick.
	eng.drainErr = nil
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error = %v", err)
	}
	if eng.drains != 2 {
		t.Fatalf("drains = %d, want retry after unauthorized", eng.drains)
	}
}

func TestPollerTick_RefreshErrorCountsAsFailure(t *testing.T) {
	eng := &fakeEngine{refreshErr: apperr.New(apperr.Transport, "timeout")}
	p := NewPoller(eng, newFakeMonitor(true), &fakeTokens{token: "tok"}, time.Second, nil)

	if err := p.Tick(context.Background()); !apperr.Is(err, apperr.Transport) {
		t.Fatalf("Tick error = %v, want TRANSPORT", err)
	}
}

func TestPollerRun_StopsOnCancel(t *testing.T) {
	eng := &fakeEngine{}
	p := NewPoller(eng, newFakeMonitor(true), &fakeTokens{token: "tok"}, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPollerTick_ReconnectSchedulesDrain(t *testing.T) {
	eng := &fakeEngine{}
	mon := newFakeMonitor(true, true, false, true)
	p := NewPoller(eng, mon, &fakeTokens{token: "tok"}, time.Second, nil)

	require.NoError(t, p.Tick(context.Background()))
	eng.setPending(1)
	require.NoError(t, p.Tick(context.Background()))
	drains, refreshes := eng.counts()
	require.Equal(t, 0, drains, "steady connectivity does not replay the queue")
	require.Equal(t, 2, refreshes)

	require.ErrorIs(t, p.Tick(context.Background()), errOffline)
	require.NoError(t, p.Tick(context.Background()))
	drains, _ = eng.counts()
	require.Equal(t, 1, drains)
}

func TestPollerRun_ReleasingForcedOfflineDrainsImmediately(t *testing.T) {
	eng := &fakeEngine{}
	mon := connectivity.NewMonitor(okProber{}, nil)
	p := NewPoller(eng, mon, &fakeTokens{token: "tok"}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		_, refreshes := eng.counts()
		return refreshes == 1
	}, time.Second, time.Millisecond)

	mon.SetForcedOffline(true)
	eng.setPending(1)
	mon.SetForcedOffline(false)

	require.Eventually(t, func() bool {
		drains, _ := eng.counts()
		return drains == 1
	}, time.Second, time.Millisecond, "reconnect should not wait for the hourly tick")
}
