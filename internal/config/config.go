package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete bufferlab configuration
type Config struct {
	Buffer   BufferConfig   `mapstructure:"buffer" yaml:"buffer"`
	Pool     PoolConfig     `mapstructure:"pool" yaml:"pool"`
	Race     RaceConfig     `mapstructure:"race" yaml:"race"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Compare  CompareConfig  `mapstructure:"compare" yaml:"compare"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// BufferConfig sizes the bounded buffer used by the pipeline
type BufferConfig struct {
	// Capacity is the maximum number of items held at once (default: 10)
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// PoolConfig controls worker pool joins
type PoolConfig struct {
	// JoinTimeoutMs bounds each pool join in milliseconds; 0 waits forever (default: 0)
	JoinTimeoutMs int `mapstructure:"join_timeout_ms" yaml:"join_timeout_ms"`
}

// RaceConfig controls the shared counter race
type RaceConfig struct {
	// Iterations is the number of updates per worker (default: 100000)
	Iterations int `mapstructure:"iterations" yaml:"iterations"`
	// Incrementers is the number of incrementing workers (default: 1)
	Incrementers int `mapstructure:"incrementers" yaml:"incrementers"`
	// Decrementers is the number of decrementing workers (default: 1)
	Decrementers int `mapstructure:"decrementers" yaml:"decrementers"`
	// RaceWindow yields inside unlocked updates so lost updates show up
	// even on a single CPU (default: true)
	RaceWindow bool `mapstructure:"race_window" yaml:"race_window"`
	// Trials repeats the unlocked phase this many times instead of running
	// both phases once; 0 disables trials (default: 0)
	Trials int `mapstructure:"trials" yaml:"trials"`
}

// PipelineConfig controls the producer/consumer run
type PipelineConfig struct {
	Producers        int    `mapstructure:"producers" yaml:"producers"`
	Consumers        int    `mapstructure:"consumers" yaml:"consumers"`
	ItemsPerProducer int    `mapstructure:"items_per_producer" yaml:"items_per_producer"`
	MaxValue         int64  `mapstructure:"max_value" yaml:"max_value"`
	Seed             uint64 `mapstructure:"seed" yaml:"seed"`
	// ProduceDelayMs and ConsumeDelayMs pace each stage (default: 0)
	ProduceDelayMs int `mapstructure:"produce_delay_ms" yaml:"produce_delay_ms"`
	ConsumeDelayMs int `mapstructure:"consume_delay_ms" yaml:"consume_delay_ms"`
}

// CompareConfig controls the worker scaling comparison
type CompareConfig struct {
	// Number is the factorial each worker computes (default: 50000)
	Number int64 `mapstructure:"number" yaml:"number"`
	// MaxWorkers is the largest pool measured (default: 4)
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "warn")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where bufferlab.log is written; empty logs to stderr (default: "")
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB rotates the log file past this size; 0 disables rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is how many rotated files are kept (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it (default: "")
	Addr string `mapstructure:"addr" yaml:"addr"`
	// Namespace prefixes every metric name (default: "bufferlab")
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// OutputConfig controls how results are printed
type OutputConfig struct {
	// Format is "text", "json" or "yaml" (default: "text")
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Buffer: BufferConfig{
			Capacity: 10,
		},
		Pool: PoolConfig{
			JoinTimeoutMs: 0,
		},
		Race: RaceConfig{
			Iterations:   100000,
			Incrementers: 1,
			Decrementers: 1,
			RaceWindow:   true,
		},
		Pipeline: PipelineConfig{
			Producers:        1,
			Consumers:        1,
			ItemsPerProducer: 10,
			MaxValue:         10,
			Seed:             1,
		},
		Compare: CompareConfig{
			Number:     50000,
			MaxWorkers: 4,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Namespace: "bufferlab",
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// JoinTimeout returns the join timeout as a Duration
func (c *PoolConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutMs) * time.Millisecond
}

// ProduceDelay returns the producer pacing as a Duration
func (c *PipelineConfig) ProduceDelay() time.Duration {
	return time.Duration(c.ProduceDelayMs) * time.Millisecond
}

// ConsumeDelay returns the consumer pacing as a Duration
func (c *PipelineConfig) ConsumeDelay() time.Duration {
	return time.Duration(c.ConsumeDelayMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("buffer.capacity", defaults.Buffer.Capacity)

	viper.SetDefault("pool.join_timeout_ms", defaults.Pool.JoinTimeoutMs)

	viper.SetDefault("race.iterations", defaults.Race.Iterations)
	viper.SetDefault("race.incrementers", defaults.Race.Incrementers)
	viper.SetDefault("race.decrementers", defaults.Race.Decrementers)
	viper.SetDefault("race.race_window", defaults.Race.RaceWindow)
	viper.SetDefault("race.trials", defaults.Race.Trials)

	viper.SetDefault("pipeline.producers", defaults.Pipeline.Producers)
	viper.SetDefault("pipeline.consumers", defaults.Pipeline.Consumers)
	viper.SetDefault("pipeline.items_per_producer", defaults.Pipeline.ItemsPerProducer)
	viper.SetDefault("pipeline.max_value", defaults.Pipeline.MaxValue)
	viper.SetDefault("pipeline.seed", defaults.Pipeline.Seed)
	viper.SetDefault("pipeline.produce_delay_ms", defaults.Pipeline.ProduceDelayMs)
	viper.SetDefault("pipeline.consume_delay_ms", defaults.Pipeline.ConsumeDelayMs)

	viper.SetDefault("compare.number", defaults.Compare.Number)
	viper.SetDefault("compare.max_workers", defaults.Compare.MaxWorkers)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
	viper.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	viper.SetDefault("output.format", defaults.Output.Format)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded values are invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// WriteYAML encodes the configuration as YAML
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// WriteDefaultFile writes the default configuration to path, creating parent
// directories. It refuses to overwrite an existing file unless force is set.
func WriteDefaultFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := Default().WriteYAML(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bufferlab")
	}
	// Fall back to ~/.config/bufferlab
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bufferlab"
	}
	return filepath.Join(home, ".config", "bufferlab")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
