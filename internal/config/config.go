// Package config provides configuration management for the extractor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ravexina/NCBI-fasta-extractor/pkg/utils"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL           = errors.New("entrez.base_url is required")
	ErrMissingViewerURL         = errors.New("entrez.viewer_url is required")
	ErrInvalidURL               = errors.New("invalid url")
	ErrMissingDatabase          = errors.New("entrez.database is required")
	ErrInvalidMaxResults        = errors.New("entrez.max_results must be at least 1")
	ErrInvalidFetchTimeout      = errors.New("fetch.timeout_sec must be at least 1")
	ErrInvalidSequenceTimeout   = errors.New("fetch.sequence_timeout_sec must be at least 1")
	ErrInvalidFailurePause      = errors.New("fetch.failure_pause_sec must be non-negative")
	ErrInvalidMaxAttempts       = errors.New("fetch.search_retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("fetch.search_retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("fetch.search_retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("fetch.search_retry.timeout_sec must be at least 1")
	ErrMissingDatasetPath       = errors.New("storage.dataset_path is required")
	ErrInvalidIDsDriver         = errors.New("storage.ids.driver must be 'file' or 'sqlite'")
	ErrMissingIDsPath           = errors.New("storage.ids.path is required")
	ErrInvalidSequenceDriver    = errors.New("storage.sequences.driver must be 'fs' or 's3'")
	ErrMissingSequenceDir       = errors.New("storage.sequences.dir is required for the fs driver")
	ErrMissingS3Bucket          = errors.New("storage.sequences.s3.bucket is required for the s3 driver")
	ErrMissingPostgresTable     = errors.New("storage.postgres.table is required when a dsn is set")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Storage drivers.
const (
	IDsDriverFile      = "file"
	IDsDriverSQLite    = "sqlite"
	SequenceDriverFS   = "fs"
	SequenceDriverS3   = "s3"
	defaultDatabase    = "nucleotide"
	defaultConfigFile  = "extractor.yaml"
	defaultMaxResults  = 100000
	defaultPGTableName = "ncbi_records"
)

// Config represents the complete extractor configuration.
type Config struct {
	Entrez  EntrezConfig  `yaml:"entrez"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EntrezConfig describes the remote NCBI services.
type EntrezConfig struct {
	BaseURL    string `yaml:"base_url"`
	ViewerURL  string `yaml:"viewer_url"`
	Database   string `yaml:"database"`
	Email      string `yaml:"email"`
	APIKey     string `yaml:"api_key"`
	Tool       string `yaml:"tool"`
	MaxResults int    `yaml:"max_results"`
}

// FetchConfig holds the deadlines applied to remote calls.
type FetchConfig struct {
	SearchRetry        RetryPolicy `yaml:"search_retry"`
	TimeoutSec         int         `yaml:"timeout_sec"`
	SequenceTimeoutSec int         `yaml:"sequence_timeout_sec"`
	FailurePauseSec    int         `yaml:"failure_pause_sec"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// StorageConfig defines where results and state are persisted.
type StorageConfig struct {
	DatasetPath string          `yaml:"dataset_path"`
	IDs         IDsConfig       `yaml:"ids"`
	Sequences   SequencesConfig `yaml:"sequences"`
	Postgres    PostgresConfig  `yaml:"postgres"`
}

// IDsConfig selects the identifier-set store.
type IDsConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// SequencesConfig selects the sequence file store.
type SequencesConfig struct {
	Driver string   `yaml:"driver"`
	Dir    string   `yaml:"dir"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds bucket settings for the s3 sequence driver.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`

	// Optional static credentials; the default AWS chain is used otherwise.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// PostgresConfig enables the optional Postgres mirror of the dataset.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	MaxConns int    `yaml:"max_conns"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Entrez: EntrezConfig{
			BaseURL:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			ViewerURL:  "https://www.ncbi.nlm.nih.gov/sviewer/viewer.cgi",
			Database:   defaultDatabase,
			Tool:       "ncbi-fasta-extractor",
			MaxResults: defaultMaxResults,
		},
		Fetch: FetchConfig{
			TimeoutSec:         10,
			SequenceTimeoutSec: 5,
			FailurePauseSec:    10,
			SearchRetry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    500,
				MaxDelayMs:        10000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        30,
			},
		},
		Storage: StorageConfig{
			DatasetPath: "./dataset.csv",
			IDs: IDsConfig{
				Driver: IDsDriverFile,
				Path:   "./ids",
			},
			Sequences: SequencesConfig{
				Driver: SequenceDriverFS,
				Dir:    "./fasta",
				S3:     S3Config{Region: "us-east-1", Prefix: "fasta/"},
			},
			Postgres: PostgresConfig{
				Table:    defaultPGTableName,
				MaxConns: 2,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file. Keys missing from the file
// keep their Default values.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when given, otherwise extractor.yaml from the working
// directory if present, otherwise Default.
func LoadOrDefault(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := LoadConfig(path)

		return cfg, path, err
	}

	if _, err := os.Stat(defaultConfigFile); err == nil {
		cfg, err := LoadConfig(defaultConfigFile)

		return cfg, defaultConfigFile, err
	}

	return Default(), "", nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and deployment-specific values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("NCBI_API_KEY"); v != "" {
		c.Entrez.APIKey = v
	}

	if v := getenv("NCBI_EMAIL"); v != "" {
		c.Entrez.Email = v
	}

	if v := getenv("EXTRACTOR_PG_DSN"); v != "" {
		c.Storage.Postgres.DSN = v
	}

	if v := getenv("EXTRACTOR_S3_BUCKET"); v != "" {
		c.Storage.Sequences.S3.Bucket = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Entrez.BaseURL == "" {
		return ErrMissingBaseURL
	}

	if err := validateURL("entrez.base_url", c.Entrez.BaseURL); err != nil {
		return err
	}

	if c.Entrez.ViewerURL == "" {
		return ErrMissingViewerURL
	}

	if err := validateURL("entrez.viewer_url", c.Entrez.ViewerURL); err != nil {
		return err
	}

	if c.Entrez.Database == "" {
		return ErrMissingDatabase
	}

	if c.Entrez.MaxResults < 1 {
		return ErrInvalidMaxResults
	}

	if c.Fetch.TimeoutSec < 1 {
		return ErrInvalidFetchTimeout
	}

	if c.Fetch.SequenceTimeoutSec < 1 {
		return ErrInvalidSequenceTimeout
	}

	if c.Fetch.FailurePauseSec < 0 {
		return ErrInvalidFailurePause
	}

	if err := c.Fetch.SearchRetry.Validate(); err != nil {
		return err
	}

	if c.Storage.DatasetPath == "" {
		return ErrMissingDatasetPath
	}

	switch c.Storage.IDs.Driver {
	case IDsDriverFile, IDsDriverSQLite:
	default:
		return ErrInvalidIDsDriver
	}

	if c.Storage.IDs.Path == "" {
		return ErrMissingIDsPath
	}

	switch c.Storage.Sequences.Driver {
	case SequenceDriverFS:
		if c.Storage.Sequences.Dir == "" {
			return ErrMissingSequenceDir
		}
	case SequenceDriverS3:
		if c.Storage.Sequences.S3.Bucket == "" {
			return ErrMissingS3Bucket
		}
	default:
		return ErrInvalidSequenceDriver
	}

	if c.Storage.Postgres.DSN != "" && c.Storage.Postgres.Table == "" {
		return ErrMissingPostgresTable
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// Validate checks the retry policy bounds.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	return nil
}

func validateURL(field, raw string) error {
	if !utils.NewHTTPHelper().IsValidURL(raw) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidURL, field, raw)
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// FetchTimeout is the hard deadline around one record fetch.
func (f *FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(f.TimeoutSec) * time.Second
}

// SequenceTimeout is the deadline around one sequence download.
func (f *FetchConfig) SequenceTimeout() time.Duration {
	return time.Duration(f.SequenceTimeoutSec) * time.Second
}

// FailurePause is how long to wait after a failed record fetch.
func (f *FetchConfig) FailurePause() time.Duration {
	return time.Duration(f.FailurePauseSec) * time.Second
}

// String returns a string representation of the config. Secrets are masked.
func (c *Config) String() string {
	key := "unset"
	if c.Entrez.APIKey != "" {
		key = "set"
	}

	return fmt.Sprintf(
		"Config{DB: %s, MaxResults: %d, APIKey: %s, Timeout: %ds, Dataset: %s, IDs: %s:%s, Sequences: %s}",
		c.Entrez.Database,
		c.Entrez.MaxResults,
		key,
		c.Fetch.TimeoutSec,
		c.Storage.DatasetPath,
		c.Storage.IDs.Driver,
		c.Storage.IDs.Path,
		strings.TrimSpace(c.Storage.Sequences.Driver+" "+c.Storage.Sequences.Dir),
	)
}
