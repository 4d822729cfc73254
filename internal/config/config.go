// Package config holds operator-level configuration for a veil process.
//
// Settings come from env vars (VEIL_*) or a config file (veil.config.yaml)
// merged through viper. The caller-facing engine knobs are the selected
// categories, the remote analyzer threshold, and the checkpoint interval;
// everything else is infrastructure (data directory, worker count, ledger
// sealing key).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/dativo-io/veil/internal/cryptoutil"
	"github.com/dativo-io/veil/internal/scanner"
)

// Viper keys. Each maps to an env var with the VEIL_ prefix
// (e.g. "checkpoint_interval" → VEIL_CHECKPOINT_INTERVAL) and to a YAML
// field in veil.config.yaml.
const (
	KeyDataDir            = "data_dir"
	KeyCategories         = "categories"
	KeyScoreThreshold     = "score_threshold"
	KeyCheckpointInterval = "checkpoint_interval"
	KeyWorkers            = "workers"
	KeyAnalyzerURL        = "analyzer_url"
	KeySnapshotCron       = "snapshot_cron"
	KeyLedgerKey          = "ledger_key"
)

// DefaultCheckpointInterval matches the engine default: one ledger snapshot
// per thousand processed documents.
const DefaultCheckpointInterval = 1000

// Config holds resolved operator configuration.
type Config struct {
	DataDir            string   // Base directory for run state (~/.veil)
	Categories         []string // Selected categories; empty = all
	ScoreThreshold     float64  // Remote-strategy minimum score
	CheckpointInterval int      // Documents per ledger checkpoint
	Workers            int      // Document-level parallelism
	AnalyzerURL        string   // Remote NLP analyzer endpoint; empty disables
	SnapshotCron       string   // Optional wall-clock snapshot schedule
	LedgerKey          string   // Optional 32-byte/64-hex key sealing ledger files
}

// AuditDBPath returns the full path to the audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// LedgerKeyBytes returns the decoded sealing key, or nil when sealing is
// disabled.
func (c *Config) LedgerKeyBytes() ([]byte, error) {
	if c.LedgerKey == "" {
		return nil, nil
	}
	key, err := cryptoutil.DecodeKey32(c.LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger_key: %w", err)
	}
	return key, nil
}

func init() {
	viper.SetEnvPrefix("VEIL")
	viper.AutomaticEnv()
	viper.SetDefault(KeyScoreThreshold, scanner.DefaultRemoteThreshold)
	viper.SetDefault(KeyCheckpointInterval, DefaultCheckpointInterval)
	viper.SetDefault(KeyWorkers, runtime.NumCPU())
}

// Load reads configuration from viper (env vars, config file, defaults) and
// returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:            resolveDataDir(),
		Categories:         viper.GetStringSlice(KeyCategories),
		ScoreThreshold:     viper.GetFloat64(KeyScoreThreshold),
		CheckpointInterval: viper.GetInt(KeyCheckpointInterval),
		Workers:            viper.GetInt(KeyWorkers),
		AnalyzerURL:        viper.GetString(KeyAnalyzerURL),
		SnapshotCron:       viper.GetString(KeySnapshotCron),
		LedgerKey:          viper.GetString(KeyLedgerKey),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veil"
	}
	return filepath.Join(home, ".veil")
}

func (c *Config) validate() error {
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score_threshold must be within [0, 1] (got %g)", c.ScoreThreshold)
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint_interval must be positive (got %d)", c.CheckpointInterval)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	if _, err := c.LedgerKeyBytes(); err != nil {
		return err
	}
	return nil
}
