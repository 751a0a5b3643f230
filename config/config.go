package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete White Light configuration.
type Config struct {
	Allocation AllocationConfig `yaml:"allocation"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Broker     BrokerConfig     `yaml:"broker"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// AllocationConfig controls the Combiner/Reconciler's rule thresholds.
type AllocationConfig struct {
	TargetVol          float64 `yaml:"target_vol"`
	SprintVolThreshold float64 `yaml:"sprint_vol_threshold"`
	SprintMaxDays      int     `yaml:"sprint_max_days"`
	RebalanceThreshold float64 `yaml:"rebalance_threshold"`
	MinOrderNotional   float64 `yaml:"min_order_notional"`
}

// ExecutionConfig controls the Executor's retry/sizing behavior.
type ExecutionConfig struct {
	RetryBase        time.Duration `yaml:"retry_base"`
	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryMaxWait     time.Duration `yaml:"retry_max_wait"`
	SafetyMargin     float64       `yaml:"safety_margin"`
	DeadlineBuffer   time.Duration `yaml:"deadline_buffer"`
	DryRun           bool          `yaml:"dry_run"`
}

// BrokerConfig names the primary and optional secondary brokerage, each a
// base URL plus the key-ID/secret pair loaded through Secrets, never
// inlined in YAML.
type BrokerConfig struct {
	Primary   BrokerEndpoint `yaml:"primary"`
	Secondary BrokerEndpoint `yaml:"secondary"`
}

// BrokerEndpoint is one brokerage's connection details.
type BrokerEndpoint struct {
	Provider string `yaml:"provider"` // e.g. "alpaca"
	BaseURL  string `yaml:"base_url"`
}

// MarketDataConfig names the primary bar provider and the on-disk cache.
type MarketDataConfig struct {
	Provider  string `yaml:"provider"` // "polygon" | "stooq"
	BaseURL   string `yaml:"base_url"`
	CachePath string `yaml:"cache_path"`
}

// AlertsConfig names the alert transport.
type AlertsConfig struct {
	Transport  string `yaml:"transport"` // "console" | "none"
	WebhookURL string `yaml:"webhook_url"`
}

// SecretsConfig names the secret provider.
type SecretsConfig struct {
	Provider string `yaml:"provider"` // "env"
	Prefix   string `yaml:"prefix"`
}

// StorageConfig holds the bar cache DSN. DSN defaults to
// MarketData.CachePath; the bar cache itself is opened from
// MarketData.CachePath, and DSN is not read anywhere else.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the sqlite file, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads Config from the YAML file at path and overlays a.env file if
// present. Unknown YAML keys are a fatal decode error rather than a
// silently ignored typo.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides lets log settings, broker base URLs, and the dry-run
// flag come from the environment. Secrets are not read here; they come
// through the secrets store.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WHITELIGHT_BROKER_PRIMARY_URL"); v != "" {
		cfg.Broker.Primary.BaseURL = v
	}
	if v := os.Getenv("WHITELIGHT_BROKER_SECONDARY_URL"); v != "" {
		cfg.Broker.Secondary.BaseURL = v
	}
	if v := os.Getenv("WHITELIGHT_DRY_RUN"); v == "true" {
		cfg.Execution.DryRun = true
	}
}

// setDefaults fills sensible values for anything the user omits.
func setDefaults(cfg *Config) {
	if cfg.Allocation.TargetVol <= 0 {
		cfg.Allocation.TargetVol = 0.20
	}
	if cfg.Allocation.SprintVolThreshold <= 0 {
		cfg.Allocation.SprintVolThreshold = 0.25
	}
	if cfg.Allocation.SprintMaxDays <= 0 {
		cfg.Allocation.SprintMaxDays = 15
	}
	if cfg.Allocation.RebalanceThreshold <= 0 {
		cfg.Allocation.RebalanceThreshold = 0.05
	}
	if cfg.Allocation.MinOrderNotional <= 0 {
		cfg.Allocation.MinOrderNotional = 10
	}
	if cfg.Execution.RetryBase <= 0 {
		cfg.Execution.RetryBase = 2 * time.Second
	}
	if cfg.Execution.RetryMaxAttempts <= 0 {
		cfg.Execution.RetryMaxAttempts = 5
	}
	if cfg.Execution.RetryMaxWait <= 0 {
		cfg.Execution.RetryMaxWait = 60 * time.Second
	}
	if cfg.Execution.SafetyMargin <= 0 {
		cfg.Execution.SafetyMargin = 0.01
	}
	if cfg.Execution.DeadlineBuffer <= 0 {
		cfg.Execution.DeadlineBuffer = 60 * time.Second
	}
	if cfg.MarketData.Provider == "" {
		cfg.MarketData.Provider = "polygon"
	}
	if cfg.MarketData.CachePath == "" {
		cfg.MarketData.CachePath = "whitelight.db"
	}
	if cfg.Alerts.Transport == "" {
		cfg.Alerts.Transport = "console"
	}
	if cfg.Secrets.Provider == "" {
		cfg.Secrets.Provider = "env"
	}
	if cfg.Secrets.Prefix == "" {
		cfg.Secrets.Prefix = "WHITELIGHT_"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = cfg.MarketData.CachePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
