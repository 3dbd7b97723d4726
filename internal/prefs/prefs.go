// Package prefs remembers TUI choices between runs: the color theme and the
// work order filter. The file lives next to the queue in the data directory.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds the remembered choices. Empty fields mean "use the default".
type Prefs struct {
	Theme  string `toml:"theme,omitempty"`
	Filter string `toml:"filter,omitempty"`
}

// Load reads preferences from path. A missing or unreadable file yields empty
// Prefs; preferences are never worth failing startup over.
func Load(path string) Prefs {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prefs{}
	}
	var p Prefs
	if err := toml.Unmarshal(data, &p); err != nil {
		return Prefs{}
	}
	p.Theme = strings.TrimSpace(p.Theme)
	p.Filter = strings.TrimSpace(p.Filter)
	return p
}

// Save writes preferences to path, creating the directory as needed.
func Save(path string, p Prefs) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("prefs path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
