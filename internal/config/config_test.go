package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"SUPABASE_URL",
	"SUPABASE_ANON_KEY",
	"FIELDTECH_DATA_DIR",
	"FIELDTECH_LOG_LEVEL",
	"FIELDTECH_METRICS_ADDR",
	"FIELDTECH_OFFLINE",
}

// clearEnv unsets every override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Unsetenv(%s): %v", key, err)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}

	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.PollInterval != 30*time.Second || cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("intervals = %v/%v, want 30s/15s", cfg.PollInterval, cfg.RequestTimeout)
	}
	if cfg.LogLevel != "info" || cfg.Theme != defaultTheme || cfg.MaxPhotoDimension != defaultMaxPhotoDimension {
		t.Fatalf("defaults = %#v", cfg)
	}
	if cfg.QueueOnUnauthorized || cfg.Offline {
		t.Fatalf("boolean defaults should be false: %#v", cfg)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := writeConfig(t, `
api_url = "  https://project.example.co  "
anon_key = " anon "
data_dir = "  ~/.fieldtech  "
log_level = "DEBUG"
poll_seconds = 5
request_timeout_seconds = 3
queue_on_unauthorized = true
theme = "Slate"
metrics_addr = "127.0.0.1:9464"
max_photo_dimension = 1024
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://project.example.co" || cfg.AnonKey != "anon" {
		t.Fatalf("APIURL/AnonKey = %q/%q", cfg.APIURL, cfg.AnonKey)
	}
	if cfg.DataDir != filepath.Join(home, ".fieldtech") {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.PollInterval != 5*time.Second || cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("intervals = %v/%v", cfg.PollInterval, cfg.RequestTimeout)
	}
	if !cfg.QueueOnUnauthorized || cfg.Theme != "Slate" || cfg.MetricsAddr != "127.0.0.1:9464" || cfg.MaxPhotoDimension != 1024 {
		t.Fatalf("cfg = %#v", cfg)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := writeConfig(t, `
api_url = "https://file.example.co"
anon_key = "file-key"
log_level = "warn"
`)

	dataDir := filepath.Join(t.TempDir(), "env-data")
	t.Setenv("SUPABASE_URL", "https://env.example.co")
	t.Setenv("SUPABASE_ANON_KEY", "env-key")
	t.Setenv("FIELDTECH_DATA_DIR", dataDir)
	t.Setenv("FIELDTECH_LOG_LEVEL", "error")
	t.Setenv("FIELDTECH_OFFLINE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://env.example.co" || cfg.AnonKey != "env-key" {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
	if cfg.DataDir != dataDir || cfg.LogLevel != "error" || !cfg.Offline {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
}

func TestLoad_InvalidOfflineFlagFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("FIELDTECH_OFFLINE", "sometimes")

	if _, err := Load(writeConfig(t, "")); err == nil || !strings.Contains(err.Error(), "read environment") {
		t.Fatalf("Load error = %v, want environment error", err)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	path := writeConfig(t, `
api_url = "   "
data_dir = ""
theme = ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL || cfg.Theme != defaultTheme {
		t.Fatalf("cfg = %#v, want defaults", cfg)
	}
	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"poll", "poll_seconds = 0", "poll_seconds"},
		{"timeout", "request_timeout_seconds = -1", "request_timeout_seconds"},
		{"photo", "max_photo_dimension = -5", "max_photo_dimension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, `api_url = [`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Config{DataDir: "/var/lib/fieldtech"}
	if got := cfg.QueuePath(); got != filepath.FromSlash("/var/lib/fieldtech/work_order_update_queue.json") {
		t.Fatalf("QueuePath = %q", got)
	}
	if got := cfg.SessionPath(); got != filepath.FromSlash("/var/lib/fieldtech/session.json") {
		t.Fatalf("SessionPath = %q", got)
	}
	if got := cfg.LogPath(); got != filepath.FromSlash("/var/lib/fieldtech/logs/fieldtech.log") {
		t.Fatalf("LogPath = %q", got)
	}
	if got := cfg.PrefsPath(); got != filepath.FromSlash("/var/lib/fieldtech/prefs.toml") {
		t.Fatalf("PrefsPath = %q", got)
	}
}

func TestDerivedPaths_DefaultWhenDataDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.QueuePath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("QueuePath = %q, want it under HOME %q", got, home)
	}
}
