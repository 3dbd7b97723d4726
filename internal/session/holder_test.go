package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHolder_SetAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	h, err := NewHolder(NewStore(path))
	if err != nil {
		t.Fatalf("NewHolder returned error: %v", err)
	}
	if _, ok := h.Token(); ok {
		t.Fatalf("new holder should be signed out")
	}

	if err := h.Set(Session{Email: "tech@example.com", AccessToken: "abc"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if tok, ok := h.Token(); !ok || tok != "abc" {
		t.Fatalf("Token = %q, %v", tok, ok)
	}

	reloaded, err := NewHolder(NewStore(path))
	if err != nil {
		t.Fatalf("NewHolder returned error: %v", err)
	}
	if sess, ok := reloaded.Current(); !ok || sess.Email != "tech@example.com" {
		t.Fatalf("reloaded session = %#v, %v", sess, ok)
	}

	if err := h.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, ok := h.Token(); ok {
		t.Fatalf("Token still present after Clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("session file remains after Clear")
	}
}

func TestHolder_SetKeepsSessionWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes the rename fail.
	path := filepath.Join(dir, DefaultFilename)
	if err := os.MkdirAll(filepath.Join(path, "child"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	h, err := NewHolder(NewStore(path))
	if err == nil {
		t.Fatalf("NewHolder should report unreadable session")
	}

	if err := h.Set(Session{AccessToken: "abc"}); err == nil {
		t.Fatalf("Set should report the failed save")
	}
	if tok, ok := h.Token(); !ok || tok != "abc" {
		t.Fatalf("Token = %q, %v; want in-memory session", tok, ok)
	}
}
