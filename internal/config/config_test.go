package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GRADEBOOK_API_URL", "GRADEBOOK_REQUEST_TIMEOUT", "GRADEBOOK_LIVE_ENABLED", "GRADEBOOK_LIVE_TRANSPORT"} {
		t.Setenv(key, "")
	}
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	clearEnv(t)
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("expected base url %q, got %q", DefaultBaseURL, c.BaseURL())
	}
	if c.RequestTimeout() != 0 {
		t.Fatalf("requests must be unbounded by default, got %s", c.RequestTimeout())
	}
	if !c.LiveEnabled() || c.LiveTransport() != TransportSSE {
		t.Fatalf("expected live sse by default, got enabled=%v transport=%s", c.LiveEnabled(), c.LiveTransport())
	}
	if c.SuccessTTL() != 3*time.Second {
		t.Fatalf("unexpected success ttl %s", c.SuccessTTL())
	}
}

func TestInitProjectDirWritesLoadableConfig(t *testing.T) {
	clearEnv(t)
	projectDir := t.TempDir()
	if err := InitProjectDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, ProjectDirName, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("default config must load: %v", err)
	}
	if c.LiveBuffer() != 16 {
		t.Fatalf("unexpected buffer %d", c.LiveBuffer())
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	clearEnv(t)
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: https://grades.example.edu/
  request_timeout: 5s
live:
  enabled: false
  transport: WS
ui:
  success_ttl: 1500ms
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "https://grades.example.edu" {
		t.Fatalf("expected trailing slash trimmed, got %s", c.BaseURL())
	}
	if c.RequestTimeout() != 5*time.Second {
		t.Fatalf("wrong timeout: %s", c.RequestTimeout())
	}
	if c.LiveEnabled() {
		t.Fatalf("expected live updates disabled")
	}
	if c.LiveTransport() != TransportWebSocket {
		t.Fatalf("expected websocket transport, got %s", c.LiveTransport())
	}
	if c.SuccessTTL() != 1500*time.Millisecond {
		t.Fatalf("wrong success ttl: %s", c.SuccessTTL())
	}
}

func TestZeroSuccessTTLIsKept(t *testing.T) {
	clearEnv(t)
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("ui:\n  success_ttl: 0s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.SuccessTTL() != 0 {
		t.Fatalf("explicit 0s should disable expiry, got %s", c.SuccessTTL())
	}
}

func TestNewConfigValidation(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"scheme":    "api:\n  base_url: ftp://grades.example.edu\n",
		"transport": "live:\n  transport: carrier-pigeon\n",
		"timeout":   "api:\n  request_timeout: -1s\n",
		"ttl":       "ui:\n  success_ttl: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			stateDir := filepath.Join(projectDir, ProjectDirName)
			if err := os.MkdirAll(stateDir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected validation error but got none")
			}
		})
	}
}

func TestEnvOverridesAndDotEnv(t *testing.T) {
	clearEnv(t)
	projectDir := t.TempDir()
	dotEnv := "GRADEBOOK_LIVE_TRANSPORT=websocket\n"
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(dotEnv), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("GRADEBOOK_LIVE_TRANSPORT") })
	t.Setenv("GRADEBOOK_API_URL", "http://127.0.0.1:9090")
	t.Setenv("GRADEBOOK_REQUEST_TIMEOUT", "2s")
	t.Setenv("GRADEBOOK_LIVE_ENABLED", "false")
	// godotenv.Load never overrides variables already present in the
	// environment, so drop the empty placeholder before loading.
	_ = os.Unsetenv("GRADEBOOK_LIVE_TRANSPORT")

	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "http://127.0.0.1:9090" {
		t.Fatalf("env base url ignored: %s", c.BaseURL())
	}
	if c.RequestTimeout() != 2*time.Second {
		t.Fatalf("env timeout ignored: %s", c.RequestTimeout())
	}
	if c.LiveEnabled() {
		t.Fatalf("env live toggle ignored")
	}
	if c.LiveTransport() != TransportWebSocket {
		t.Fatalf(".env transport ignored: %s", c.LiveTransport())
	}
}
