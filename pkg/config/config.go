// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < explicit file < env < flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all caseline configuration.
type Config struct {
	Version int `yaml:"version"`

	Source    SourceConfig    `yaml:"source"`
	Batch     BatchConfig     `yaml:"batch"`
	Cache     CacheConfig     `yaml:"cache"`
	S3        S3Config        `yaml:"s3"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Export    ExportConfig    `yaml:"export"`
}

// SourceConfig controls how event logs are read.
type SourceConfig struct {
	Engine           string `yaml:"engine"` // memory | duckdb
	Format           string `yaml:"format"` // csv | xes | xlsx | parquet, empty = by extension
	CaseColumn       string `yaml:"case_column"`
	ActivityColumn   string `yaml:"activity_column"`
	TransitionColumn string `yaml:"transition_column"`
	TimestampColumn  string `yaml:"timestamp_column"`
	ResourceColumn   string `yaml:"resource_column"`
	TimestampFormat  string `yaml:"timestamp_format"` // Go layout tried first
	Delimiter        string `yaml:"delimiter"`
}

// BatchConfig controls parallel computation.
type BatchConfig struct {
	Workers     int           `yaml:"workers"` // 0 = one per CPU
	CaseTimeout time.Duration `yaml:"case_timeout"`
	FailFast    bool          `yaml:"fail_fast"`
}

// CacheConfig controls result caching.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"` // memory | redis
	Address    string        `yaml:"address"`
	Password   string        `yaml:"password"`
	Database   int           `yaml:"database"`
	Prefix     string        `yaml:"prefix"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// S3Config for reading logs from and writing exports to object storage.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
	ServiceName string  `yaml:"service_name"`
}

// ExportConfig controls export defaults.
type ExportConfig struct {
	Format      string `yaml:"format"`      // json | parquet | xlsx
	Compression string `yaml:"compression"` // snappy | zstd | gzip | lz4 | none
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Source: SourceConfig{
			Engine:           "memory",
			CaseColumn:       "case:concept:name",
			ActivityColumn:   "concept:name",
			TransitionColumn: "lifecycle:transition",
			TimestampColumn:  "time:timestamp",
			ResourceColumn:   "org:resource",
			Delimiter:        ",",
		},
		Batch: BatchConfig{
			Workers:     0, // auto
			CaseTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Backend:    "memory",
			Address:    "localhost:6379",
			Prefix:     "caseline:results:",
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
		},
		S3: S3Config{
			Region: "eu-west-1",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: "caseline",
		},
		Export: ExportConfig{
			Format:      "parquet",
			Compression: "snappy",
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from the standard locations, then explicit
// (if set, it must exist), then the environment.
func (m *Manager) Load(explicit string) error {
	paths := getConfigPaths()
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return err
		}
		paths = append(paths, explicit)
	}
	return m.LoadFrom(paths...)
}

// LoadFrom resets to defaults, merges the given files in order (missing
// files are skipped) and applies environment overrides.
func (m *Manager) LoadFrom(paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but report errors for existing files
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	m.loadEnv()
	return nil
}

// getConfigPaths returns config file paths in priority order.
func getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/caseline/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".caseline", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".caseline.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}

	// Merge non-zero values
	m.merge(&partial)
	return nil
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	c := m.config

	// Source
	setString(&c.Source.Engine, src.Source.Engine)
	setString(&c.Source.Format, src.Source.Format)
	setString(&c.Source.CaseColumn, src.Source.CaseColumn)
	setString(&c.Source.ActivityColumn, src.Source.ActivityColumn)
	setString(&c.Source.TransitionColumn, src.Source.TransitionColumn)
	setString(&c.Source.TimestampColumn, src.Source.TimestampColumn)
	setString(&c.Source.ResourceColumn, src.Source.ResourceColumn)
	setString(&c.Source.TimestampFormat, src.Source.TimestampFormat)
	setString(&c.Source.Delimiter, src.Source.Delimiter)

	// Batch
	if src.Batch.Workers != 0 {
		c.Batch.Workers = src.Batch.Workers
	}
	if src.Batch.CaseTimeout != 0 {
		c.Batch.CaseTimeout = src.Batch.CaseTimeout
	}
	if src.Batch.FailFast {
		c.Batch.FailFast = true
	}

	// Cache
	if src.Cache.Enabled {
		c.Cache.Enabled = true
	}
	setString(&c.Cache.Backend, src.Cache.Backend)
	setString(&c.Cache.Address, src.Cache.Address)
	setString(&c.Cache.Password, src.Cache.Password)
	setString(&c.Cache.Prefix, src.Cache.Prefix)
	if src.Cache.Database != 0 {
		c.Cache.Database = src.Cache.Database
	}
	if src.Cache.TTL != 0 {
		c.Cache.TTL = src.Cache.TTL
	}
	if src.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = src.Cache.MaxEntries
	}

	// S3
	setString(&c.S3.Region, src.S3.Region)
	setString(&c.S3.Endpoint, src.S3.Endpoint)
	setString(&c.S3.AccessKeyID, src.S3.AccessKeyID)
	setString(&c.S3.SecretAccessKey, src.S3.SecretAccessKey)
	if src.S3.UsePathStyle {
		c.S3.UsePathStyle = true
	}

	// Telemetry
	if src.Telemetry.Enabled {
		c.Telemetry.Enabled = true
	}
	setString(&c.Telemetry.Endpoint, src.Telemetry.Endpoint)
	setString(&c.Telemetry.ServiceName, src.Telemetry.ServiceName)
	if src.Telemetry.SampleRate != 0 {
		c.Telemetry.SampleRate = src.Telemetry.SampleRate
	}

	// Export
	setString(&c.Export.Format, src.Export.Format)
	setString(&c.Export.Compression, src.Export.Compression)
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	c := m.config

	// CASELINE_ENGINE
	setString(&c.Source.Engine, os.Getenv("CASELINE_ENGINE"))

	// CASELINE_WORKERS
	if v := os.Getenv("CASELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.Workers = n
		}
	}

	// CASELINE_CASE_TIMEOUT
	if v := os.Getenv("CASELINE_CASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Batch.CaseTimeout = d
		}
	}

	// CASELINE_REDIS_ADDR enables the Redis cache
	if v := os.Getenv("CASELINE_REDIS_ADDR"); v != "" {
		c.Cache.Enabled = true
		c.Cache.Backend = "redis"
		c.Cache.Address = v
	}

	// CASELINE_S3_REGION, CASELINE_S3_ENDPOINT
	setString(&c.S3.Region, os.Getenv("CASELINE_S3_REGION"))
	if v := os.Getenv("CASELINE_S3_ENDPOINT"); v != "" {
		c.S3.Endpoint = v
		c.S3.UsePathStyle = true
	}

	// CASELINE_OTLP_ENDPOINT enables tracing
	if v := os.Getenv("CASELINE_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}

	// CASELINE_COMPRESSION
	setString(&c.Export.Compression, os.Getenv("CASELINE_COMPRESSION"))
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// YAML renders the effective configuration.
func (m *Manager) YAML() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return yaml.Marshal(m.config)
}
