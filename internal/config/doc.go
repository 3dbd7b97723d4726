// Package config loads fieldtech's settings.
//
// # Resolution Order
//
//  1. Built-in defaults
//  2. The TOML file at the given path, or ~/.config/fieldtech/config.toml
//  3. Environment variables (read with envconfig)
//
// A missing file is not an error. A file that fails to parse is.
//
// # TOML Format
//
//	api_url = "https://project.example.co"
//	anon_key = "eyJhbGciOi..."
//	data_dir = "~/.local/share/fieldtech"
//	log_level = "info"
//	poll_seconds = 30
//	request_timeout_seconds = 15
//	queue_on_unauthorized = false
//	theme = "Dracula"
//	metrics_addr = ""
//	max_photo_dimension = 2048
//
// Every field is optional. Tilde expansion applies to data_dir.
//
// # Environment
//
//   - SUPABASE_URL: overrides api_url
//   - SUPABASE_ANON_KEY: overrides anon_key
//   - FIELDTECH_DATA_DIR: overrides data_dir
//   - FIELDTECH_LOG_LEVEL: overrides log_level
//   - FIELDTECH_METRICS_ADDR: overrides metrics_addr
//   - FIELDTECH_OFFLINE: start in offline mode (no network writes)
//
// # Derived Paths
//
// Everything fieldtech writes lives under data_dir:
//
//   - QueuePath: work_order_update_queue.json, the offline update queue
//   - SessionPath: session.json, the saved sign-in (mode 0600)
//   - LogPath: logs/fieldtech.log, the rotating JSON log
//   - PrefsPath: prefs.toml, the remembered theme and list filter
package config
