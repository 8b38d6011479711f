// Package config loads sitekernel settings from defaults, an optional
// config file and SITEKERNEL_ environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// SITEKERNEL_ENGINE_TEMP_TABLE_MEMORY_LIMIT for engine.temp_table_memory_limit.
const EnvPrefix = "SITEKERNEL"

type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// EngineConfig carries the identity and limits handed to every engine.
type EngineConfig struct {
	ClusterIndex int32  `mapstructure:"cluster_index"`
	SiteID       int64  `mapstructure:"site_id"`
	HostID       int32  `mapstructure:"host_id"`
	Hostname     string `mapstructure:"hostname"`
	Partitions   int32  `mapstructure:"partitions"`

	TempTableMemoryLimit  int64 `mapstructure:"temp_table_memory_limit"`
	TempTableLogThreshold int64 `mapstructure:"temp_table_log_threshold"`

	// PlanCacheTargetSize is what ResizePlanCache purges down to, measured
	// in the unit PlanCacheWeigh selects ("entries" or "bytes").
	PlanCacheTargetSize int64  `mapstructure:"plan_cache_target_size"`
	PlanCacheWeigh      string `mapstructure:"plan_cache_weigh"`

	MaxParamCount       int `mapstructure:"max_param_count"`
	MaxBatchCount       int `mapstructure:"max_batch_count"`
	ResultBufferSize    int `mapstructure:"result_buffer_size"`
	ExceptionBufferSize int `mapstructure:"exception_buffer_size"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Listen    string `mapstructure:"listen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.cluster_index", 0)
	v.SetDefault("engine.site_id", 0)
	v.SetDefault("engine.host_id", 0)
	v.SetDefault("engine.hostname", defaultHostname())
	v.SetDefault("engine.partitions", 1)
	v.SetDefault("engine.temp_table_memory_limit", 100<<20)
	v.SetDefault("engine.temp_table_log_threshold", 0)
	v.SetDefault("engine.plan_cache_target_size", 1000)
	v.SetDefault("engine.plan_cache_weigh", "entries")
	v.SetDefault("engine.max_param_count", 1000)
	v.SetDefault("engine.max_batch_count", 1000)
	v.SetDefault("engine.result_buffer_size", 10<<20)
	v.SetDefault("engine.exception_buffer_size", 64<<10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output_path", "")

	v.SetDefault("metrics.namespace", "sitekernel")
	v.SetDefault("metrics.listen", ":9464")
}

func defaultHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

// Default returns the configuration with nothing overridden.
func Default() *Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. path may be empty; otherwise its extension
// selects the format (yaml, toml, json). Environment variables override
// both the defaults and the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects limits the engine cannot run with.
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.Partitions <= 0:
		return fmt.Errorf("engine.partitions must be positive, got %d", e.Partitions)
	case e.TempTableMemoryLimit <= 0:
		return fmt.Errorf("engine.temp_table_memory_limit must be positive, got %d", e.TempTableMemoryLimit)
	case e.TempTableLogThreshold < 0:
		return fmt.Errorf("engine.temp_table_log_threshold must not be negative, got %d", e.TempTableLogThreshold)
	case e.PlanCacheTargetSize <= 0:
		return fmt.Errorf("engine.plan_cache_target_size must be positive, got %d", e.PlanCacheTargetSize)
	case e.PlanCacheWeigh != "entries" && e.PlanCacheWeigh != "bytes":
		return fmt.Errorf("engine.plan_cache_weigh must be entries or bytes, got %q", e.PlanCacheWeigh)
	case e.MaxParamCount <= 0 || e.MaxParamCount > 32767:
		return fmt.Errorf("engine.max_param_count must be in 1..32767, got %d", e.MaxParamCount)
	case e.MaxBatchCount <= 0:
		return fmt.Errorf("engine.max_batch_count must be positive, got %d", e.MaxBatchCount)
	case e.ResultBufferSize <= 0:
		return fmt.Errorf("engine.result_buffer_size must be positive, got %d", e.ResultBufferSize)
	case e.ExceptionBufferSize < 16:
		return fmt.Errorf("engine.exception_buffer_size must be at least 16, got %d", e.ExceptionBufferSize)
	}
	return nil
}
