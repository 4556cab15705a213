package config

import (
	"strings"
	"time"

	"github.com/marmos91/daserver/pkg/api"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/population"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", nil) are replaced with defaults; explicit values are
// preserved, so mass_item_loops cannot be configured to zero.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyRefreshDefaults(&cfg.Refresh)
	applyPopulationDefaults(&cfg.Population)
	applyShutdownDefaults(&cfg.Shutdown)
	applyNotifyDefaults(&cfg.Notify)
	applyControlDefaults(&cfg.Control)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}

func applyAPIDefaults(cfg *api.APIConfig) {
	cfg.ApplyDefaults()
}

func applyRefreshDefaults(cfg *RefreshConfig) {
	if cfg.Period == 0 {
		cfg.Period = 200 * time.Millisecond
	}
	if cfg.SignalInterval == 0 {
		cfg.SignalInterval = time.Second
	}

	def := population.DefaultScenarioConfig()
	if cfg.Scenarios.TankOverflow == 0 {
		cfg.Scenarios.TankOverflow = def.TankOverflow
	}
	if cfg.Scenarios.WaterLevel == 0 {
		cfg.Scenarios.WaterLevel = def.WaterLevel
	}
	if cfg.Scenarios.Heating == 0 {
		cfg.Scenarios.Heating = def.Heating
	}
	if cfg.Scenarios.DeviceFailure == 0 {
		cfg.Scenarios.DeviceFailure = def.DeviceFailure
	}
}

func applyPopulationDefaults(cfg *PopulationConfig) {
	def := population.DefaultConfig()
	if cfg.MassItemLoops == 0 {
		cfg.MassItemLoops = def.MassItemLoops
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = def.BatchDelay
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
}

func applyShutdownDefaults(cfg *ShutdownConfig) {
	if cfg.PopulationGrace == 0 {
		cfg.PopulationGrace = lifecycle.DefaultPopulationGrace
	}
	if cfg.RefreshGrace == 0 {
		cfg.RefreshGrace = lifecycle.DefaultRefreshGrace
	}
	if cfg.AuxiliaryTimeout == 0 {
		cfg.AuxiliaryTimeout = 5 * time.Second
	}
}

func applyNotifyDefaults(cfg *NotifyConfig) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 4096
	}
	if cfg.RecentSize == 0 {
		cfg.RecentSize = 256
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 5 * time.Second
	}

	n := &cfg.NATS
	if n.URL == "" {
		n.URL = "nats://127.0.0.1:4222"
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = "daserver"
	}
	if n.ClientName == "" {
		n.ClientName = "daserver"
	}
	if n.MaxReconnects == 0 {
		n.MaxReconnects = -1
	}
	if n.ReconnectWait == 0 {
		n.ReconnectWait = 2 * time.Second
	}
}

func applyControlDefaults(cfg *ControlConfig) {
	if cfg.Item == "" {
		cfg.Item = lifecycle.DefaultControlItem
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
