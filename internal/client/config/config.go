package config

import "time"

// Config holds runtime settings for the sync client.
//
// Units: RequestTimeout, SyncTimeout and OnlineCheckInterval are
// time.Duration values (e.g., 10*time.Second).
type Config struct {
	// ServerEndpointAddr is the base URL of the backend REST API.
	ServerEndpointAddr string
	// AuthToken is the bearer token sent with every request. Empty means
	// unauthenticated.
	AuthToken string
	// DatabaseDSN is the SQLite DSN of the local store.
	DatabaseDSN string
	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration
	// SyncTimeout bounds one full sync cycle.
	SyncTimeout time.Duration
	// BatchSize is the number of ledger entries drained per upload batch.
	BatchSize int
	// MaxRetries is the per-entry retry ceiling for transient upload failures.
	MaxRetries int
	// UploadWorkers is the number of concurrent remote calls within a batch.
	UploadWorkers int
	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration
	// SyncInterval is how often watch mode runs a sync cycle while online.
	SyncInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:3000"
	c.AuthToken = ""
	c.DatabaseDSN = "homemoney.db"
	c.RequestTimeout = 10 * time.Second
	c.SyncTimeout = 2 * time.Minute
	c.BatchSize = 100
	c.MaxRetries = 3
	c.UploadWorkers = 4
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
