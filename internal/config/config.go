package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything fieldtech reads at startup.
type Config struct {
	APIURL              string
	AnonKey             string
	DataDir             string
	LogLevel            string
	PollInterval        time.Duration
	RequestTimeout      time.Duration
	QueueOnUnauthorized bool
	Theme               string
	MetricsAddr         string
	MaxPhotoDimension   int
	Offline             bool
}

const (
	defaultConfigPath        = "~/.config/fieldtech/config.toml"
	defaultDataDir           = "~/.local/share/fieldtech"
	defaultAPIURL            = "http://127.0.0.1:54321"
	defaultLogLevel          = "info"
	defaultPollSeconds       = 30
	defaultTimeoutSeconds    = 15
	defaultTheme             = "Dracula"
	defaultMaxPhotoDimension = 2048

	queueFilename   = "work_order_update_queue.json"
	sessionFilename = "session.json"
	logFilename     = "fieldtech.log"
	prefsFilename   = "prefs.toml"
)

// fileConfig is the TOML layout. Pointers distinguish "unset" from zero.
type fileConfig struct {
	APIURL                string `toml:"api_url"`
	AnonKey               string `toml:"anon_key"`
	DataDir               string `toml:"data_dir"`
	LogLevel              string `toml:"log_level"`
	PollSeconds           *int   `toml:"poll_seconds"`
	RequestTimeoutSeconds *int   `toml:"request_timeout_seconds"`
	QueueOnUnauthorized   bool   `toml:"queue_on_unauthorized"`
	Theme                 string `toml:"theme"`
	MetricsAddr           string `toml:"metrics_addr"`
	MaxPhotoDimension     *int   `toml:"max_photo_dimension"`
}

// envOverrides is read with envconfig after the file. Unset variables leave
// the file value alone.
type envOverrides struct {
	APIURL      string `envconfig:"SUPABASE_URL"`
	AnonKey     string `envconfig:"SUPABASE_ANON_KEY"`
	DataDir     string `envconfig:"FIELDTECH_DATA_DIR"`
	LogLevel    string `envconfig:"FIELDTECH_LOG_LEVEL"`
	MetricsAddr string `envconfig:"FIELDTECH_METRICS_ADDR"`
	Offline     *bool  `envconfig:"FIELDTECH_OFFLINE"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:            defaultAPIURL,
		DataDir:           mustExpand(defaultDataDir),
		LogLevel:          defaultLogLevel,
		PollInterval:      defaultPollSeconds * time.Second,
		RequestTimeout:    defaultTimeoutSeconds * time.Second,
		Theme:             defaultTheme,
		MaxPhotoDimension: defaultMaxPhotoDimension,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Load reads the config file at path (or the default location), applies
// environment overrides, and fills defaults for anything left empty.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw fileConfig
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	return build(raw, env)
}

func build(raw fileConfig, env envOverrides) (Config, error) {
	cfg := Default()

	cfg.APIURL = firstNonEmpty(env.APIURL, raw.APIURL, defaultAPIURL)
	cfg.AnonKey = firstNonEmpty(env.AnonKey, raw.AnonKey)
	cfg.LogLevel = strings.ToLower(firstNonEmpty(env.LogLevel, raw.LogLevel, defaultLogLevel))
	cfg.Theme = firstNonEmpty(raw.Theme, defaultTheme)
	cfg.MetricsAddr = firstNonEmpty(env.MetricsAddr, raw.MetricsAddr)
	cfg.QueueOnUnauthorized = raw.QueueOnUnauthorized
	if env.Offline != nil {
		cfg.Offline = *env.Offline
	}

	dataDir := firstNonEmpty(env.DataDir, raw.DataDir, defaultDataDir)
	expanded, err := expandPath(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("data_dir: %w", err)
	}
	cfg.DataDir = expanded

	if raw.PollSeconds != nil {
		if *raw.PollSeconds <= 0 {
			return Config{}, fmt.Errorf("poll_seconds must be positive, got %d", *raw.PollSeconds)
		}
		cfg.PollInterval = time.Duration(*raw.PollSeconds) * time.Second
	}
	if raw.RequestTimeoutSeconds != nil {
		if *raw.RequestTimeoutSeconds <= 0 {
			return Config{}, fmt.Errorf("request_timeout_seconds must be positive, got %d", *raw.RequestTimeoutSeconds)
		}
		cfg.RequestTimeout = time.Duration(*raw.RequestTimeoutSeconds) * time.Second
	}
	if raw.MaxPhotoDimension != nil {
		if *raw.MaxPhotoDimension < 0 {
			return Config{}, fmt.Errorf("max_photo_dimension must not be negative, got %d", *raw.MaxPhotoDimension)
		}
		cfg.MaxPhotoDimension = *raw.MaxPhotoDimension
	}

	return cfg, nil
}

// QueuePath returns the offline queue snapshot location.
func (c Config) QueuePath() string {
	return filepath.Join(c.dataDir(), queueFilename)
}

// SessionPath returns the saved session location.
func (c Config) SessionPath() string {
	return filepath.Join(c.dataDir(), sessionFilename)
}

// LogPath returns the application log file location.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "logs", logFilename)
}

// PrefsPath returns where the TUI remembers theme and filter choices.
func (c Config) PrefsPath() string {
	return filepath.Join(c.dataDir(), prefsFilename)
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
