// Package config loads the ingestion worker's configuration from
// environment variables only -- no YAML file, no CLI flags (spec.md's
// Non-goals exclude thin CLI flags and dotenv-style config loading).
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the top-level configuration for the ingestion worker.
type Config struct {
	InfluxDB    InfluxDB
	ObjectStore ObjectStore
	SecretStore SecretStore
	Massive     Massive
	Watchlist   []string
	Health      Health
	Features    Features
	Logging     Logging

	// ReferenceDataDir points at a directory of us_etf_*.csv/us_stock_*.csv
	// files used to classify tickers the regex-only domain.Filter tier
	// can't (see internal/reference). Empty disables the override.
	ReferenceDataDir string
}

// InfluxDB holds connection parameters for the time-series store.
type InfluxDB struct {
	Endpoint  string
	Port      int
	Database  string
	SecretARN string
}

// ObjectStore holds the bucket used for news article bodies. An empty
// Bucket means the object store is unconfigured and NewsStore skips
// upload (spec.md §4.2).
type ObjectStore struct {
	Bucket   string
	Region   string
	Endpoint string
}

// SecretStore holds the ARN under which upstream API keys are stored
// and the endpoint of the HTTP secret-manager proxy that resolves it.
type SecretStore struct {
	APIKeysSecretARN string
	Region           string
	Endpoint         string
}

// Massive holds the vendor feed endpoints (fast-feed/delayed-feed REST and
// WebSocket hosts).
type Massive struct {
	BaseURL      string
	WSURL        string
	DelayedWSURL string
}

// Health holds the control-surface HTTP listener configuration.
type Health struct {
	Port int
}

// Features toggles the top-level producers.
type Features struct {
	EnableRealtime   bool
	EnableScheduler  bool
	FetchNewsContent bool
}

// Logging configures the process-wide logger.
type Logging struct {
	Level string
}

// Load reads every environment variable named in spec.md §6 and returns a
// populated Config, applying the documented defaults where unset.
func Load() *Config {
	return &Config{
		InfluxDB: InfluxDB{
			Endpoint:  os.Getenv("INFLUXDB_ENDPOINT"),
			Port:      envInt("INFLUXDB_PORT", 8181),
			Database:  envString("INFLUXDB_DATABASE", "market_data"),
			SecretARN: os.Getenv("INFLUXDB_SECRET_ARN"),
		},
		ObjectStore: ObjectStore{
			Bucket:   os.Getenv("DATA_BUCKET"),
			Region:   envString("AWS_REGION", "us-west-2"),
			Endpoint: os.Getenv("OBJECT_STORE_ENDPOINT"),
		},
		SecretStore: SecretStore{
			APIKeysSecretARN: envString("API_KEYS_SECRET_ARN", "wavepilot/api-keys"),
			Region:           envString("AWS_REGION", "us-west-2"),
			Endpoint:         os.Getenv("SECRET_STORE_ENDPOINT"),
		},
		Massive: Massive{
			BaseURL:      envString("MASSIVE_BASE_URL", "https://api.massive.com"),
			WSURL:        os.Getenv("MASSIVE_WS_URL"),
			DelayedWSURL: os.Getenv("MASSIVE_DELAYED_WS_URL"),
		},
		Watchlist: envList("DEFAULT_WATCHLIST", []string{"AAPL", "TSLA", "NVDA", "AMZN", "GOOGL"}),
		Health: Health{
			Port: envInt("HEALTH_CHECK_PORT", 8080),
		},
		Features: Features{
			EnableRealtime:   envBool("ENABLE_REALTIME", true),
			EnableScheduler:  envBool("ENABLE_SCHEDULER", true),
			FetchNewsContent: envBool("FETCH_NEWS_CONTENT", false),
		},
		Logging: Logging{
			Level: envString("LOG_LEVEL", "info"),
		},
		ReferenceDataDir: os.Getenv("REFERENCE_DATA_DIR"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		s := strings.TrimSpace(part)
		if s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
