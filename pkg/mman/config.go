package mman

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dittomap/mman/internal/bytesize"
)

// Config configures a TilingManager (spec.md §4.5). DefaultConfig()
// returns one with every default filled in; NewTilingManager and
// LoadConfigFile fill the zero fields of a partially populated (or zero)
// value with those defaults via withDefaults().
type Config struct {
	// WindowSize is the target region size. Implementations MAY round up
	// to a page multiple.
	WindowSize bytesize.ByteSize `mapstructure:"window_size" yaml:"window_size" validate:"omitempty"`

	// MaxMemorySize upper-bounds the sum of sizes of all live regions.
	// Zero is replaced by defaultMaxMemorySize when defaults are applied.
	MaxMemorySize bytesize.ByteSize `mapstructure:"max_memory_size" yaml:"max_memory_size" validate:"omitempty"`

	// MaxOpenHandles upper-bounds the count of live regions. Zero means
	// unbounded.
	MaxOpenHandles int `mapstructure:"max_open_handles" yaml:"max_open_handles" validate:"omitempty,gte=0"`

	// Logging controls the manager's diagnostic logger.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// EnableMetrics registers Prometheus gauges mirroring the manager's
	// counters on a fresh registry of the manager's own, not on
	// prometheus.DefaultRegisterer.
	EnableMetrics bool `mapstructure:"enable_metrics" yaml:"enable_metrics"`
}

// LoggingConfig controls the manager's diagnostic logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// DefaultConfig returns a Config with spec.md §6's documented defaults:
// WindowSize = defaultWindowSize, MaxMemorySize = defaultMaxMemorySize,
// MaxOpenHandles unbounded (0), text logging at INFO, metrics disabled.
func DefaultConfig() Config {
	return Config{
		WindowSize:     bytesize.ByteSize(defaultWindowSize),
		MaxMemorySize:  bytesize.ByteSize(defaultMaxMemorySize),
		MaxOpenHandles: 0,
		Logging:        LoggingConfig{Level: "INFO", Format: "text"},
	}
}

// withDefaults fills zero fields of c with DefaultConfig()'s values and
// returns the result; c itself is left unmodified.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MaxMemorySize == 0 {
		c.MaxMemorySize = d.MaxMemorySize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	return c
}

// Validate checks c against its `validate` struct tags via
// go-playground/validator.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("mman: invalid config: %w", err)
	}
	return nil
}

// LoadConfigFile reads a YAML configuration file at path via viper,
// decodes it with mapstructure (using byteSizeDecodeHook, which parses
// WindowSize/MaxMemorySize with bytesize.ParseByteSize), applies defaults
// for anything unset, and validates the result.
func LoadConfigFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: config file %q: %v", ErrIO, path, err)
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("mman: read config %q: %w", path, err)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, fmt.Errorf("mman: unmarshal config %q: %w", path, err)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfigFile writes cfg to path as YAML, creating the file with
// owner-only permissions.
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("mman: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("mman: write config %q: %w", path, err)
	}
	return nil
}

// byteSizeDecodeHook lets mapstructure decode YAML/env string and numeric
// values like "64Mi" into bytesize.ByteSize, matching the human-readable
// size syntax bytesize.ParseByteSize accepts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
