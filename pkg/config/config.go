// Package config loads process configuration from an optional YAML file and
// environment variable overrides, following this module's layered
// defaults-then-file-then-env convention.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the thin HTTP presentation surface in cmd/xrail-server.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls the durable store (edge_snapshots, execution_history).
type DatabaseConfig struct {
	Driver          string `json:"driver" yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" yaml:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" yaml:"port" env:"DATABASE_PORT"`
	User            string `json:"user" yaml:"user" env:"DATABASE_USER"`
	Password        string `json:"password" yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" yaml:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" yaml:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// ConnectionString builds a libpq-style connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// CacheConfig controls the hot edge cache (Redis).
type CacheConfig struct {
	Addr     string `json:"addr" yaml:"addr" env:"CACHE_ADDR"`
	Password string `json:"password" yaml:"password" env:"CACHE_PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"CACHE_DB"`
}

// LoggingConfig controls the logger package.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	// File, when set, mirrors the log stream to this path alongside stdout.
	File string `json:"file" yaml:"file" env:"LOG_FILE"`
}

// CredentialsConfig controls the credentials collaborator.
type CredentialsConfig struct {
	// Source selects between "env" (read PROVIDER_<NAME>_API_KEY vars) and
	// "azure_keyvault".
	Source            string `json:"source" yaml:"source" env:"CREDENTIALS_SOURCE"`
	AzureVaultURL     string `json:"azure_vault_url" yaml:"azure_vault_url" env:"AZURE_VAULT_URL"`
}

// ObjectiveWeights is the (alpha, beta, gamma) triple of §4.4, constrained
// to sum to 1 with each component >= 0.
type ObjectiveWeights struct {
	CostWeight        float64 `json:"cost_weight" yaml:"cost_weight" env:"ROUTING_COST_WEIGHT"`
	ETAWeight         float64 `json:"eta_weight" yaml:"eta_weight" env:"ROUTING_ETA_WEIGHT"`
	ReliabilityWeight float64 `json:"reliability_weight" yaml:"reliability_weight" env:"ROUTING_RELIABILITY_WEIGHT"`
}

// RerouteThresholds is the §4.6.1 reroute trigger configuration.
type RerouteThresholds struct {
	CostPercentDrop    float64 `json:"cost_percent_drop" yaml:"cost_percent_drop" env:"REROUTE_COST_PERCENT_DROP"`
	ETAPercentDrop     float64 `json:"eta_percent_drop" yaml:"eta_percent_drop" env:"REROUTE_ETA_PERCENT_DROP"`
	ReliabilityRise    float64 `json:"reliability_rise" yaml:"reliability_rise" env:"REROUTE_RELIABILITY_RISE"`
}

// RefreshPeriods is the per-class cadence of §4.2, in seconds.
type RefreshPeriods struct {
	FastSeconds     int `json:"fast_seconds" yaml:"fast_seconds" env:"REFRESH_FAST_SECONDS"`
	SlowSeconds     int `json:"slow_seconds" yaml:"slow_seconds" env:"REFRESH_SLOW_SECONDS"`
	SnapshotSeconds int `json:"snapshot_seconds" yaml:"snapshot_seconds" env:"REFRESH_SNAPSHOT_SECONDS"`
}

// RoutingConfig controls the graph builder, solver, and ArgMax selector.
type RoutingConfig struct {
	HopLimit            int               `json:"hop_limit" yaml:"hop_limit" env:"ROUTING_HOP_LIMIT"`
	CandidateK          int               `json:"candidate_k" yaml:"candidate_k" env:"ROUTING_CANDIDATE_K"`
	MinReliability      float64           `json:"min_reliability" yaml:"min_reliability" env:"ROUTING_MIN_RELIABILITY"`
	MaxPerSegmentClass  map[string]int    `json:"max_per_segment_class" yaml:"max_per_segment_class"`
	Weights             ObjectiveWeights  `json:"weights" yaml:"weights"`
}

// ExecutionConfig controls the orchestrator and segment executors.
type ExecutionConfig struct {
	Mode                string            `json:"mode" yaml:"mode" env:"EXECUTION_MODE"`
	HistoryCap          int               `json:"history_cap" yaml:"history_cap" env:"EXECUTION_HISTORY_CAP"`
	AIRerouteEnabled    bool              `json:"ai_reroute_enabled" yaml:"ai_reroute_enabled" env:"EXECUTION_AI_REROUTE_ENABLED"`
	RerouteThresholds   RerouteThresholds `json:"reroute_thresholds" yaml:"reroute_thresholds"`
	ConfirmationPolls   int               `json:"confirmation_polls" yaml:"confirmation_polls" env:"EXECUTION_CONFIRMATION_POLLS"`
	ConfirmationIntervalSeconds int       `json:"confirmation_interval_seconds" yaml:"confirmation_interval_seconds" env:"EXECUTION_CONFIRMATION_INTERVAL_SECONDS"`
	PerProviderTimeoutSeconds map[string]int `json:"per_provider_timeouts" yaml:"per_provider_timeouts"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Credentials CredentialsConfig `json:"credentials" yaml:"credentials"`
	Routing     RoutingConfig     `json:"routing" yaml:"routing"`
	Execution   ExecutionConfig   `json:"execution" yaml:"execution"`
	Refresh     RefreshPeriods    `json:"refresh" yaml:"refresh"`
}

// New returns a configuration populated with the spec's documented defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Cache: CacheConfig{Addr: "localhost:6379", DB: 0},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Credentials: CredentialsConfig{Source: "env"},
		Routing: RoutingConfig{
			HopLimit:       5,
			CandidateK:     5,
			MinReliability: 0.5,
			Weights: ObjectiveWeights{
				CostWeight:        0.5,
				ETAWeight:         0.3,
				ReliabilityWeight: 0.2,
			},
		},
		Execution: ExecutionConfig{
			Mode:                        "simulation",
			HistoryCap:                  10000,
			AIRerouteEnabled:            true,
			ConfirmationPolls:           30,
			ConfirmationIntervalSeconds: 5,
			RerouteThresholds: RerouteThresholds{
				CostPercentDrop: 5,
				ETAPercentDrop:  20,
				ReliabilityRise: 0.1,
			},
		},
		Refresh: RefreshPeriods{
			FastSeconds:     2,
			SlowSeconds:     30,
			SnapshotSeconds: 60,
		},
	}
}

// Load loads configuration from an optional .env file, an optional YAML
// file (configs/config.yaml, or the path named by CONFIG_FILE), and
// environment variable overrides, in that order of increasing precedence.
// It rejects routing weights that are negative or do not sum to 1.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	w := cfg.Routing.Weights
	sum := w.CostWeight + w.ETAWeight + w.ReliabilityWeight
	if w.CostWeight < 0 || w.ETAWeight < 0 || w.ReliabilityWeight < 0 || sum < 1-1e-9 || sum > 1+1e-9 {
		return nil, fmt.Errorf("routing weights must be >= 0 and sum to 1, got %v/%v/%v",
			w.CostWeight, w.ETAWeight, w.ReliabilityWeight)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
