package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the agent's full configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	LiveMetrics LiveMetricsConfig `mapstructure:"live_metrics" yaml:"live_metrics"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig holds the debug server's listen configuration (the host
// exposing the local introspection endpoints, not the remote service).
type ServerConfig struct {
	Port                    int           `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	Host                    string        `mapstructure:"host" yaml:"host" validate:"required"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout" yaml:"graceful_shutdown_timeout"`
}

// LiveMetricsConfig holds the four-component engine's tunables.
type LiveMetricsConfig struct {
	InstrumentationKey string `mapstructure:"instrumentation_key" yaml:"instrumentation_key" validate:"required"`
	Endpoint           string `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`

	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PostInterval time.Duration `mapstructure:"post_interval" yaml:"post_interval"`
	WaitOnError  time.Duration `mapstructure:"wait_on_error" yaml:"wait_on_error"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	StreamIDSeed string `mapstructure:"stream_id_seed" yaml:"stream_id_seed"`

	MachineName  string `mapstructure:"machine_name" yaml:"machine_name"`
	InstanceName string `mapstructure:"instance_name" yaml:"instance_name"`
	RoleName     string `mapstructure:"role_name" yaml:"role_name"`
	AgentVersion string `mapstructure:"agent_version" yaml:"agent_version"`

	// NonNormalizedCPU reproduces the historical back-compat CPU metric
	// definition: multiply the normalized 0..100 percentage by the
	// number of cores instead of reporting it already normalized.
	NonNormalizedCPU bool `mapstructure:"non_normalized_cpu" yaml:"non_normalized_cpu"`

	// MaxFetcherTicksPerSecond defensively bounds the Data Fetcher's
	// tick rate; 0 disables the limiter.
	MaxFetcherTicksPerSecond float64 `mapstructure:"max_fetcher_ticks_per_second" yaml:"max_fetcher_ticks_per_second"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
	Output     string `mapstructure:"output" yaml:"output"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig holds the internal operational metrics endpoint
// configuration (distinct from the telemetry shipped to the remote
// live-metrics service).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

var validate = validator.New()

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, ConfigError("config validation failed", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables only.
func LoadConfigFromEnv() (*Config, error) {
	setDefaults()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, ConfigError("config validation failed", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.graceful_shutdown_timeout", "15s")

	viper.SetDefault("live_metrics.endpoint", "https://rt.services.visualstudio.com")
	viper.SetDefault("live_metrics.ping_interval", "5s")
	viper.SetDefault("live_metrics.post_interval", "1s")
	viper.SetDefault("live_metrics.wait_on_error", "10s")
	viper.SetDefault("live_metrics.request_timeout", "10s")
	viper.SetDefault("live_metrics.agent_version", "1.0.0")
	viper.SetDefault("live_metrics.non_normalized_cpu", false)
	viper.SetDefault("live_metrics.max_fetcher_ticks_per_second", 20.0)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration against its struct tags, following
// the same approach as the validator-backed webhook request validation:
// missing endpoint or instrumentation key here is a ConfigError (spec
// §7), fatal to construction but never to the host.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.LiveMetrics.PingInterval <= 0 {
		return fmt.Errorf("live_metrics.ping_interval must be positive")
	}
	if c.LiveMetrics.PostInterval <= 0 {
		return fmt.Errorf("live_metrics.post_interval must be positive")
	}
	if c.LiveMetrics.WaitOnError <= 0 {
		return fmt.Errorf("live_metrics.wait_on_error must be positive")
	}

	return nil
}

// IsDebug returns true if the configured log level is debug.
func (c *Config) IsDebug() bool {
	return c.Log.Level == "debug"
}
