package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "info"

refresh:
  period: 100ms
  scenarios:
    water_level: 1s

population:
  mass_item_loops: 3

api:
  port: 8081
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Refresh.Period != 100*time.Millisecond {
		t.Errorf("Expected refresh period 100ms, got %v", cfg.Refresh.Period)
	}
	if cfg.Refresh.Scenarios.WaterLevel != time.Second {
		t.Errorf("Expected water level period 1s, got %v", cfg.Refresh.Scenarios.WaterLevel)
	}
	if cfg.Refresh.Scenarios.DeviceFailure != 2*time.Minute {
		t.Errorf("Expected default device failure period 2m, got %v", cfg.Refresh.Scenarios.DeviceFailure)
	}
	if cfg.Population.MassItemLoops != 3 {
		t.Errorf("Expected 3 mass item loops, got %d", cfg.Population.MassItemLoops)
	}
	if cfg.Shutdown.RefreshGrace != 30*time.Second {
		t.Errorf("Expected default refresh grace 30s, got %v", cfg.Shutdown.RefreshGrace)
	}
	if cfg.API.Port != 8081 {
		t.Errorf("Expected API port 8081, got %d", cfg.API.Port)
	}
	if !cfg.API.IsEnabled() {
		t.Error("Expected API to be enabled by default")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Control.Item != "Commands.RequestShutdown" {
		t.Errorf("Expected default control item, got %q", cfg.Control.Item)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
shutdown:
  refresh_grace: soon
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid duration, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[notify.nats]
enabled = true
url = "nats://nats.example:4222"

[control]
honor_shutdown_request = true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if !cfg.Notify.NATS.Enabled || cfg.Notify.NATS.URL != "nats://nats.example:4222" {
		t.Errorf("Unexpected NATS config: %+v", cfg.Notify.NATS)
	}
	if !cfg.Control.HonorShutdownRequest {
		t.Error("Expected honor_shutdown_request to be true")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
	if DefaultConfigExists() {
		t.Error("Expected no config in a fresh config home")
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := GetConfigDir()

	if filepath.Base(dir) != "daserver" {
		t.Errorf("Expected directory name 'daserver', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DASERVER_LOGGING_LEVEL", "ERROR")
	t.Setenv("DASERVER_API_PORT", "9191")
	t.Setenv("DASERVER_REFRESH_PERIOD", "500ms")
	t.Setenv("DASERVER_SHUTDOWN_POPULATION_GRACE", "3s")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

api:
  port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("Expected port 9191 from env var, got %d", cfg.API.Port)
	}
	if cfg.Refresh.Period != 500*time.Millisecond {
		t.Errorf("Expected refresh period 500ms from env var, got %v", cfg.Refresh.Period)
	}
	if cfg.Shutdown.PopulationGrace != 3*time.Second {
		t.Errorf("Expected population grace 3s from env var, got %v", cfg.Shutdown.PopulationGrace)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Population.MassItemLoops = 7
	cfg.Notify.NATS.IncludeItems = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Population.MassItemLoops != 7 {
		t.Errorf("Expected 7 mass item loops, got %d", loaded.Population.MassItemLoops)
	}
	if !loaded.Notify.NATS.IncludeItems {
		t.Error("Expected include_items to survive the round trip")
	}
	if loaded.Refresh.Period != cfg.Refresh.Period {
		t.Errorf("Expected refresh period %v, got %v", cfg.Refresh.Period, loaded.Refresh.Period)
	}
}

func TestTracingConfig_Resource(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
telemetry:
  enabled: true
  instance_id: "sim-a"
  attributes:
    site: "plant-north"

population:
  mass_item_loops: 4
  seed: 42

items:
  max_items: 5000
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tc := cfg.TracingConfig("1.2.3")
	if tc.ServiceName != "daserver" || tc.ServiceVersion != "1.2.3" {
		t.Errorf("Unexpected service identity %q %q", tc.ServiceName, tc.ServiceVersion)
	}
	if tc.InstanceID != "sim-a" {
		t.Errorf("Expected instance 'sim-a', got %q", tc.InstanceID)
	}

	want := map[string]string{
		"site":                                "plant-north",
		"daserver.population.mass_item_loops": "4",
		"daserver.population.seed":            "42",
		"daserver.items.max":                  "5000",
		"daserver.control.item":               "Commands.RequestShutdown",
		"daserver.refresh.period":             cfg.Refresh.Period.String(),
	}
	for k, v := range want {
		if got := tc.Attributes[k]; got != v {
			t.Errorf("Attribute %s: expected %q, got %q", k, v, got)
		}
	}

	pc := cfg.ProfilerConfig("1.2.3")
	if pc.Tags["instance"] != "sim-a" {
		t.Errorf("Expected profile instance tag 'sim-a', got %q", pc.Tags["instance"])
	}
}

func TestTracingConfig_InstanceDefaultsToHostname(t *testing.T) {
	host, err := os.Hostname()
	if err != nil {
		t.Skipf("no host name: %v", err)
	}
	cfg := GetDefaultConfig()
	if got := cfg.TracingConfig("dev").InstanceID; got != host {
		t.Errorf("Expected instance %q, got %q", host, got)
	}
}
