package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lorawan-pipeline/config.yaml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "PIPELINE_CONFIG"

// envPrefix namespaces the environment overrides, e.g.
// PIPELINE_MONGO_URI -> mongo.uri.
const envPrefix = "PIPELINE_"

// Source names one CSV source file tracked by its own checkpoint.
type Source struct {
	ID   string `koanf:"id"`
	Path string `koanf:"path"`
}

// IngestionConfig bounds the ingestion stage.
type IngestionConfig struct {
	BatchSize     int           `koanf:"batch_size"`
	ChannelBuffer int           `koanf:"channel_buffer"`
	RunTimeout    time.Duration `koanf:"run_timeout"`
}

// MongoConfig carries document store connection parameters.
type MongoConfig struct {
	URI      string        `koanf:"uri"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout"`
}

// StateConfig locates the sqlite checkpoint/run-state database.
type StateConfig struct {
	Path string `koanf:"path"`
}

// AnalyticsConfig parameterizes the aggregation modules.
type AnalyticsConfig struct {
	Workers          int           `koanf:"workers"`
	TopDevices       int           `koanf:"top_devices"`
	WeakRSSI         float64       `koanf:"weak_rssi"`
	WeakSNR          float64       `koanf:"weak_snr"`
	HighTemperature  float64       `koanf:"high_temperature"`
	Window           time.Duration `koanf:"window"` // 0 = whole record set
	HighTempExport   string        `koanf:"high_temp_export"`
	IncludeHighTemps bool          `koanf:"include_high_temps"`
}

// APIConfig configures the read-only analytics API server.
type APIConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SchedulerConfig controls the optional interval loop in cmd/pipeline.
// Interval 0 means run once and exit.
type SchedulerConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig controls the zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Config is the full application configuration. It is built once at startup
// and passed explicitly into constructors; there is no package-level state.
type Config struct {
	Sources   []Source        `koanf:"sources"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Mongo     MongoConfig     `koanf:"mongo"`
	State     StateConfig     `koanf:"state"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	API       APIConfig       `koanf:"api"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

func defaultConfig() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			BatchSize:     1000,
			ChannelBuffer: 256,
			RunTimeout:    10 * time.Minute,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://127.0.0.1:27017",
			Database: "lorawan",
			Timeout:  30 * time.Second,
		},
		State: StateConfig{
			Path: "pipeline.db",
		},
		Analytics: AnalyticsConfig{
			Workers:          3,
			TopDevices:       10,
			WeakRSSI:         -110,
			WeakSNR:          -10,
			HighTemperature:  35.0,
			Window:           0,
			IncludeHighTemps: true,
		},
		API: APIConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (if any), then
// PIPELINE_* environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path == "" {
		for _, p := range DefaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.Analytics.Workers <= 0 {
		return fmt.Errorf("analytics.workers must be positive, got %d", c.Analytics.Workers)
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.ID == "" || src.Path == "" {
			return fmt.Errorf("every source needs an id and a path")
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
	}
	return nil
}

// SourceByID resolves a configured source.
func (c *Config) SourceByID(id string) (Source, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}
