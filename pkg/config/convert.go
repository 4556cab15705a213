package config

import (
	"os"
	"strconv"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/internal/telemetry"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/marmos91/daserver/pkg/notify"
	"github.com/marmos91/daserver/pkg/population"
	"github.com/marmos91/daserver/pkg/simulation"
)

const serviceName = "daserver"

// LoggerConfig converts the logging section for logger.Init.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// ApplyLogging changes the level and format of the running logger. The
// output cannot change without a restart.
func ApplyLogging(cfg LoggingConfig) {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
}

// TracingConfig converts the telemetry section for telemetry.Init. The
// resource carries the instance and the settings that shape the address
// space next to any user attributes.
func (c *Config) TracingConfig(version string) telemetry.Config {
	attrs := make(map[string]string, len(c.Telemetry.Attributes)+5)
	for k, v := range c.Telemetry.Attributes {
		attrs[k] = v
	}
	attrs[telemetry.ResMassItemLoops] = strconv.Itoa(c.Population.MassItemLoops)
	attrs[telemetry.ResSeed] = strconv.FormatInt(c.Population.Seed, 10)
	attrs[telemetry.ResMaxItems] = strconv.Itoa(c.Items.MaxItems)
	attrs[telemetry.ResControlItem] = c.Control.Item
	attrs[telemetry.ResRefreshPeriod] = c.Refresh.Period.String()

	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		InstanceID:     c.instanceID(),
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
		Attributes:     attrs,
	}
}

func (c *Config) ProfilerConfig(version string) telemetry.ProfilingConfig {
	var tags map[string]string
	if id := c.instanceID(); id != "" {
		tags = map[string]string{"instance": id}
	}
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
		Tags:           tags,
	}
}

func (c *Config) instanceID() string {
	if c.Telemetry.InstanceID != "" {
		return c.Telemetry.InstanceID
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

func (c *Config) MetricsServerConfig() metrics.ServerConfig {
	return metrics.ServerConfig{Port: c.Metrics.Port, Path: c.Metrics.Path}
}

func (c *Config) SimulationConfig() simulation.Config {
	return simulation.Config{
		Period:         c.Refresh.Period,
		SignalInterval: c.Refresh.SignalInterval,
	}
}

func (c *Config) ScenarioConfig() population.ScenarioConfig {
	s := c.Refresh.Scenarios
	return population.ScenarioConfig{
		TankOverflow:  s.TankOverflow,
		WaterLevel:    s.WaterLevel,
		Heating:       s.Heating,
		DeviceFailure: s.DeviceFailure,
	}
}

func (c *Config) PlanConfig() population.Config {
	return population.Config{
		MassItemLoops: c.Population.MassItemLoops,
		BatchDelay:    c.Population.BatchDelay,
		Seed:          c.Population.Seed,
	}
}

func (c *Config) LifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		PopulationGrace:      c.Shutdown.PopulationGrace,
		RefreshGrace:         c.Shutdown.RefreshGrace,
		AuxiliaryStopTimeout: c.Shutdown.AuxiliaryTimeout,
	}
}

func (c *Config) DispatcherConfig() notify.Config {
	return notify.Config{QueueSize: c.Notify.QueueSize}
}

// NATSSinkConfig returns the sink settings and whether the sink is enabled.
func (c *Config) NATSSinkConfig() (notify.NATSConfig, bool) {
	n := c.Notify.NATS
	return notify.NATSConfig{
		URL:           n.URL,
		SubjectPrefix: n.SubjectPrefix,
		ClientName:    n.ClientName,
		MaxReconnects: n.MaxReconnects,
		ReconnectWait: n.ReconnectWait,
		IncludeItems:  n.IncludeItems,
	}, n.Enabled
}
