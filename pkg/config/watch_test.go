package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: INFO\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	// Invalid content is skipped without stopping the watch
	if err := os.WriteFile(path, []byte("logging:\n  level: LOUD\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}
	time.Sleep(2 * reloadDebounce)

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n  format: json\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Logging.Level != "DEBUG" || cfg.Logging.Format != "json" {
			t.Errorf("Unexpected reloaded logging config: %+v", cfg.Logging)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.yaml")
	if err := Watch(context.Background(), path, func(*Config) {}); err == nil {
		t.Fatal("Expected error watching a missing directory")
	}
}
