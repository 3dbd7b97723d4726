package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/syncer"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"longer than ten", 10, "longer th…"},
		{"héllo wörld", 5, "héll…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.limit); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestTruncateMiddle(t *testing.T) {
	got := truncateMiddle("/home/tech/.local/share/fieldtech/logs/fieldtech.log", 21)
	if got != "/home/tech…ldtech.log" {
		t.Fatalf("truncateMiddle = %q", got)
	}
	if got := truncateMiddle("short", 21); got != "short" {
		t.Fatalf("truncateMiddle short = %q", got)
	}
}

func TestDescribeDrain(t *testing.T) {
	tests := []struct {
		name   string
		result syncer.DrainResult
		online bool
		want   string
	}{
		{"offline", syncer.DrainResult{Remaining: 2}, false, "Offline. 2 updates waiting to sync."},
		{"nothing", syncer.DrainResult{}, true, "Up to date."},
		{"all", syncer.DrainResult{Attempted: 1, Synced: 1}, true, "Synced 1 update."},
		{"partial", syncer.DrainResult{Attempted: 3, Synced: 1, Remaining: 2}, true, "Synced 1 of 3; 2 still queued."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := describeDrain(tc.result, tc.online); got != tc.want {
				t.Fatalf("describeDrain = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDescribeError(t *testing.T) {
	if got := describeError(apperr.Wrap(apperr.Transport, "fetch", errors.New("dial tcp"))); got != "backend unreachable" {
		t.Fatalf("transport = %q", got)
	}
	if got := describeError(apperr.New(apperr.NotFound, "no such work order")); got != "no such work order" {
		t.Fatalf("not found = %q", got)
	}
	if got := describeError(errors.New("plain")); got != "plain" {
		t.Fatalf("plain = %q", got)
	}
}

func TestFlashExpire(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := flash{text: "saved", at: at}
	if got := f.expire(at.Add(flashTTL - time.Second)); got.text != "saved" {
		t.Fatal("flash expired early")
	}
	if got := f.expire(at.Add(flashTTL)); got.text != "" {
		t.Fatal("flash did not expire")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := relativeTime(time.Time{}, now); got != "" {
		t.Fatalf("zero time = %q", got)
	}
	if got := relativeTime(now.Add(-3*time.Minute), now); got != "3 minutes ago" {
		t.Fatalf("relativeTime = %q", got)
	}
}
