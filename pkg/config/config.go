package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/daserver/pkg/api"
)

// EnvPrefix is the prefix of every environment override, e.g.
// DASERVER_LOGGING_LEVEL=DEBUG or DASERVER_REFRESH_PERIOD=500ms.
const EnvPrefix = "DASERVER"

// Config represents the daserver configuration.
//
// It covers the static aspects of the server:
//   - Logging, tracing and profiling
//   - The Prometheus metrics and operator API servers
//   - Refresh timing and scenario periods
//   - Population pacing and shutdown grace periods
//   - Notification fan-out (in-memory ring, NATS)
//
// The address space and the alarm catalog are built by the population
// plan and are not configurable here.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DASERVER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the operator API server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Refresh controls the periodic refresh task
	Refresh RefreshConfig `mapstructure:"refresh" yaml:"refresh"`

	// Population controls the pacing of the population task
	Population PopulationConfig `mapstructure:"population" yaml:"population"`

	// Shutdown holds the grace periods applied when the server stops
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`

	// Items bounds the item store
	Items ItemsConfig `mapstructure:"items" yaml:"items"`

	// Notify configures outbound notification delivery
	Notify NotifyConfig `mapstructure:"notify" yaml:"notify"`

	// Control configures the shutdown control item
	Control ControlConfig `mapstructure:"control" yaml:"control"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// InstanceID is reported as service.instance.id on traces and as the
	// instance tag on profiles
	// Default: the host name
	InstanceID string `mapstructure:"instance_id" yaml:"instance_id,omitempty"`

	// Attributes are extra resource attributes, e.g. site or line names
	Attributes map[string]string `mapstructure:"attributes" yaml:"attributes,omitempty"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Path is the scrape path
	// Default: /metrics
	Path string `mapstructure:"path" validate:"omitempty,startswith=/" yaml:"path"`
}

// RefreshConfig controls the refresh task.
type RefreshConfig struct {
	// Period is the tick interval
	// Default: 200ms
	Period time.Duration `mapstructure:"period" validate:"gt=0" yaml:"period"`

	// SignalInterval is how often the synthetic signals are recomputed
	// Default: 1s
	SignalInterval time.Duration `mapstructure:"signal_interval" validate:"gte=0" yaml:"signal_interval"`

	// Scenarios holds the period of each alarm scenario
	Scenarios ScenariosConfig `mapstructure:"scenarios" yaml:"scenarios"`
}

// ScenariosConfig holds the alarm scenario periods.
type ScenariosConfig struct {
	TankOverflow  time.Duration `mapstructure:"tank_overflow" validate:"gt=0" yaml:"tank_overflow"`
	WaterLevel    time.Duration `mapstructure:"water_level" validate:"gt=0" yaml:"water_level"`
	Heating       time.Duration `mapstructure:"heating" validate:"gt=0" yaml:"heating"`
	DeviceFailure time.Duration `mapstructure:"device_failure" validate:"gt=0" yaml:"device_failure"`
}

// PopulationConfig controls the population task.
type PopulationConfig struct {
	// MassItemLoops is the number of MassItems batches
	// Default: 100
	MassItemLoops int `mapstructure:"mass_item_loops" validate:"gte=0" yaml:"mass_item_loops"`

	// BatchDelay is the pause after each mass array batch
	// Default: 10ms
	BatchDelay time.Duration `mapstructure:"batch_delay" validate:"gte=0" yaml:"batch_delay"`

	// Seed drives the pseudo-random sample arrays
	// Default: 1
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// ShutdownConfig holds the grace periods, measured from the stop signal.
type ShutdownConfig struct {
	// PopulationGrace bounds the wait for the population task
	// Default: 10s
	PopulationGrace time.Duration `mapstructure:"population_grace" validate:"gt=0" yaml:"population_grace"`

	// RefreshGrace bounds the wait for the refresh task
	// Default: 30s
	RefreshGrace time.Duration `mapstructure:"refresh_grace" validate:"gt=0" yaml:"refresh_grace"`

	// AuxiliaryTimeout bounds the stop of the API and metrics servers
	// Default: 5s
	AuxiliaryTimeout time.Duration `mapstructure:"auxiliary_timeout" validate:"gt=0" yaml:"auxiliary_timeout"`
}

// ItemsConfig bounds the item store.
type ItemsConfig struct {
	// MaxItems caps the number of live items. 0 means unbounded.
	MaxItems int `mapstructure:"max_items" validate:"gte=0" yaml:"max_items"`
}

// NotifyConfig configures outbound notification delivery.
type NotifyConfig struct {
	// QueueSize bounds pending notifications; overflow is dropped
	// Default: 4096
	QueueSize int `mapstructure:"queue_size" validate:"gt=0" yaml:"queue_size"`

	// RecentSize is the capacity of the ring served by /api/v1/events/recent
	// Default: 256
	RecentSize int `mapstructure:"recent_size" validate:"gt=0" yaml:"recent_size"`

	// StopTimeout bounds draining the queue at shutdown
	// Default: 5s
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"gt=0" yaml:"stop_timeout"`

	// NATS publishes notifications to a NATS server
	NATS NATSConfig `mapstructure:"nats" yaml:"nats"`
}

// NATSConfig configures the NATS notification sink.
type NATSConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// URL is the server URL
	// Default: nats://127.0.0.1:4222
	URL string `mapstructure:"url" validate:"required_if=Enabled true" yaml:"url"`

	// SubjectPrefix is prepended to every subject
	// Default: daserver
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`

	// ClientName identifies the connection on the server
	ClientName string `mapstructure:"client_name" yaml:"client_name"`

	// MaxReconnects is passed to the client; -1 retries forever
	// Default: -1
	MaxReconnects int `mapstructure:"max_reconnects" yaml:"max_reconnects"`

	// ReconnectWait is the pause between reconnect attempts
	// Default: 2s
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`

	// IncludeItems also publishes item value changes, which are frequent
	IncludeItems bool `mapstructure:"include_items" yaml:"include_items"`
}

// ControlConfig configures the shutdown control item.
type ControlConfig struct {
	// Item is the path of the control item
	// Default: Commands.RequestShutdown
	Item string `mapstructure:"item" validate:"required" yaml:"item"`

	// HonorShutdownRequest stops the process when a client writes the
	// control item. When false the request is only logged and published.
	HonorShutdownRequest bool `mapstructure:"honor_shutdown_request" yaml:"honor_shutdown_request"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DASERVER_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location. A missing file is not
// an error; the defaults (plus environment overrides) are used instead.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  daserver config init\n\n"+
				"Or specify a custom config file:\n"+
				"  daserver <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  daserver config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold the API signing secret
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment overrides and the config file search.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvKeys registers every leaf key with viper. AutomaticEnv alone only
// resolves keys viper already knows about, so environment overrides of keys
// absent from the file would otherwise be lost on Unmarshal.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Duration(0)) {
			bindEnvKeys(v, ft, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "30s", "5m" or "1h" (and raw
// nanosecond numbers) to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/daserver, ~/.config/daserver, or
// the current directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "daserver")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "daserver")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
