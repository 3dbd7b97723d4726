package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/backend"
)

func TestLoad_MissingFileIsSignedOut(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), DefaultFilename))

	sess, ok, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if ok || sess.Valid() {
		t.Fatalf("Load = %#v ok=%v, want signed out", sess, ok)
	}
}

func TestSave_RoundTripWithOwnerOnlyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFilename)
	s := NewStore(path)

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	want := FromAuth(" tech@example.com ", backend.AuthSession{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
	}, now)

	if err := s.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("mode = %o, want 600", perm)
	}

	got, ok, err := s.Load()
	if err != nil || !ok {
		t.Fatalf("Load = ok %v err %v", ok, err)
	}
	if got.Email != "tech@example.com" || got.Token() != "access" || got.RefreshToken != "refresh" {
		t.Fatalf("Load = %#v", got)
	}
	if !got.SignedInAt.Equal(now) {
		t.Fatalf("SignedInAt = %v, want %v", got.SignedInAt, now)
	}
}

func TestLoad_CorruptFileIsRecoverable(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, ok, err := NewStore(path).Load()
	if ok {
		t.Fatalf("Load ok = true for corrupt file")
	}
	if !apperr.Is(err, apperr.Persistence) || !apperr.IsRecoverable(err) {
		t.Fatalf("Load error = %v, want recoverable PERSISTENCE", err)
	}
}

func TestLoad_EmptyTokenIsSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	if err := os.WriteFile(path, []byte(`{"email":"a@b.c","access_token":"  "}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, ok, err := NewStore(path).Load()
	if err != nil || ok {
		t.Fatalf("Load = ok %v err %v, want signed out without error", ok, err)
	}
}

func TestSave_RejectsEmptySession(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), DefaultFilename))
	if err := s.Save(Session{Email: "a@b.c"}); !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("Save error = %v, want INVALID_INPUT", err)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	s := NewStore(path)

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear on missing file returned error: %v", err)
	}
	if err := s.Save(Session{AccessToken: "x"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("session file still present: %v", err)
	}
}
