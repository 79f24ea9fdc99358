package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testConfig renders a minimal valid configuration pointing at loopback
// endpoints that are not expected to be reachable.
func testConfig(dbPath string) string {
	return `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

upstream:
  base_url: "http://127.0.0.1:18123"
  token: "test-token"
  entity_prefix: "number.luftator_"
  reconnect_delay: 1
  request_timeout: 1

modbus:
  host: "127.0.0.1"
  port: 1502
  unit_id: 1
  family: "atrea-rd5"
  timeout: 1
  reconnect_delay: 60

scheduler:
  interval: 60
  align_to_minute: false

poller:
  enabled: false

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18099
  timeouts:
    read: 30
    write: 60
    idle: 120
`
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("LUFTUJHA_CONFIG")
	defer os.Setenv("LUFTUJHA_CONFIG", originalEnv)

	os.Setenv("LUFTUJHA_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_StartupAndShutdown exercises the full wiring against
// unreachable upstream and Modbus endpoints. The process must come up,
// retry in the background, and shut down cleanly on context cancel.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	if err := os.WriteFile(configPath, []byte(testConfig(dbPath)), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("LUFTUJHA_CONFIG")
	defer os.Setenv("LUFTUJHA_CONFIG", originalEnv)
	os.Setenv("LUFTUJHA_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	// The database file must exist and carry the migrated schema.
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestRun_UnknownDeviceFamily verifies startup fails fast on a family
// the register catalog does not know.
func TestRun_UnknownDeviceFamily(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := strings.Replace(testConfig(dbPath), "atrea-rd5", "unknown-device", 1)

	if err := os.WriteFile(configPath, []byte(cfg), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("LUFTUJHA_CONFIG")
	defer os.Setenv("LUFTUJHA_CONFIG", originalEnv)
	os.Setenv("LUFTUJHA_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with unknown device family")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("LUFTUJHA_CONFIG")
	defer os.Setenv("LUFTUJHA_CONFIG", originalEnv)

	os.Unsetenv("LUFTUJHA_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("LUFTUJHA_CONFIG")
	defer os.Setenv("LUFTUJHA_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("LUFTUJHA_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
