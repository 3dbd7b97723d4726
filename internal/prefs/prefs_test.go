package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	p := Load(filepath.Join(t.TempDir(), "prefs.toml"))
	if p != (Prefs{}) {
		t.Fatalf("Load = %+v, want zero Prefs", p)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("theme = \" Slate \"\nfilter = \"Open\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := Load(path)
	if p.Theme != "Slate" || p.Filter != "Open" {
		t.Fatalf("Load = %+v, want Slate/Open", p)
	}
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("theme = [unterminated"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if p := Load(path); p != (Prefs{}) {
		t.Fatalf("Load = %+v, want zero Prefs", p)
	}
}

func TestSave_RoundTripCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "prefs.toml")

	if err := Save(path, Prefs{Theme: "Slate", Filter: "Pending sync"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	p := Load(path)
	if p.Theme != "Slate" || p.Filter != "Pending sync" {
		t.Fatalf("round trip = %+v", p)
	}
}

func TestSave_EmptyPath(t *testing.T) {
	if err := Save("  ", Prefs{Theme: "Slate"}); err == nil {
		t.Fatal("Save with empty path returned nil error")
	}
}
