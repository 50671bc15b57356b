// internal/config/config.go
//
// This package handles configuration and the .gradebook directory structure.
// Every directory the client is started from gets a .gradebook/ folder holding
// config.yaml and the log files.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in the working directory
	ProjectDirName = ".gradebook"

	// DefaultBaseURL is where the grades backend listens in development.
	DefaultBaseURL = "http://localhost:8080"

	// TransportSSE streams live updates as text/event-stream.
	TransportSSE = "sse"
	// TransportWebSocket streams live updates over a WebSocket.
	TransportWebSocket = "websocket"

	defaultLiveBuffer = 16
	defaultSuccessTTL = 3 * time.Second
)

const defaultProjectConfigYAML = `# gradebook client configuration
version: 1

api:
  # Base URL of the grades backend. Override with GRADEBOOK_API_URL.
  base_url: http://localhost:8080
  # 0s leaves requests unbounded.
  request_timeout: 0s

live:
  # Keeps the average fresh while a student is selected.
  enabled: true
  # sse or websocket
  transport: sse
  buffer: 16

ui:
  # 0s keeps success messages until the next one replaces them.
  success_ttl: 3s
`

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LiveConfig controls the per-student live-update channel.
type LiveConfig struct {
	Enabled   *bool  `yaml:"enabled,omitempty"`
	Transport string `yaml:"transport"`
	Buffer    int    `yaml:"buffer"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	SuccessTTL time.Duration `yaml:"success_ttl"`
}

// ProjectConfig models .gradebook/config.yaml.
type ProjectConfig struct {
	Version int        `yaml:"version"`
	API     APIConfig  `yaml:"api"`
	Live    LiveConfig `yaml:"live"`
	UI      UIConfig   `yaml:"ui"`
}

// Config holds the runtime configuration for the client.
type Config struct {
	// ProjectDir is the directory where the user ran `gradebook` from
	ProjectDir string

	// StateDir is ProjectDir/.gradebook
	StateDir string

	Project ProjectConfig
}

// InitProjectDir creates the .gradebook directory structure in the given directory.
//
// Structure created:
// .gradebook/
// ├── config.yaml
// └── logs/
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig loads .env (when present), config.yaml, and GRADEBOOK_* overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	cfg.Project.normalize()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// BaseURL returns the configured backend URL.
func (c *Config) BaseURL() string {
	return c.Project.API.BaseURL
}

// RequestTimeout returns the per-request bound; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	return c.Project.API.RequestTimeout
}

// LiveEnabled reports whether the live-update channel should be opened.
func (c *Config) LiveEnabled() bool {
	return c.Project.Live.Enabled == nil || *c.Project.Live.Enabled
}

// LiveTransport returns "sse" or "websocket".
func (c *Config) LiveTransport() string {
	return c.Project.Live.Transport
}

// LiveBuffer is the number of pending notifications kept per subscription.
func (c *Config) LiveBuffer() int {
	return c.Project.Live.Buffer
}

// SuccessTTL is how long success messages stay on screen. Zero means they
// stay until replaced.
func (c *Config) SuccessTTL() time.Duration {
	return c.Project.UI.SuccessTTL
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API:     APIConfig{BaseURL: DefaultBaseURL},
		Live: LiveConfig{
			Transport: TransportSSE,
			Buffer:    defaultLiveBuffer,
		},
		UI: UIConfig{SuccessTTL: defaultSuccessTTL},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(pc.Live.Transport) == "" {
		pc.Live.Transport = TransportSSE
	}
	if pc.Live.Buffer <= 0 {
		pc.Live.Buffer = defaultLiveBuffer
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("GRADEBOOK_API_URL")); value != "" {
		pc.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("GRADEBOOK_REQUEST_TIMEOUT")); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			pc.API.RequestTimeout = d
		}
	}
	if value := strings.TrimSpace(os.Getenv("GRADEBOOK_LIVE_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			pc.Live.Enabled = &enabled
		}
	}
	if value := strings.TrimSpace(os.Getenv("GRADEBOOK_LIVE_TRANSPORT")); value != "" {
		pc.Live.Transport = value
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.Live.Transport = strings.ToLower(strings.TrimSpace(pc.Live.Transport))
	if pc.Live.Transport == "ws" {
		pc.Live.Transport = TransportWebSocket
	}
	pc.applyDefaults()
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host")
	}
	if pc.API.RequestTimeout < 0 {
		return fmt.Errorf("api.request_timeout must not be negative")
	}
	if pc.UI.SuccessTTL < 0 {
		return fmt.Errorf("ui.success_ttl must not be negative")
	}
	switch pc.Live.Transport {
	case TransportSSE, TransportWebSocket:
	default:
		return fmt.Errorf("live.transport must be 'sse' or 'websocket'")
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
