package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported transcription backends.
const (
	BackendDeepgram    = "deepgram"
	BackendDeepgramSDK = "deepgram-sdk"
	BackendGoogle      = "google"
)

// DefaultAPIKeyEnv is the environment variable holding the transcription API key.
const DefaultAPIKeyEnv = "DEEPGRAM_API_KEY"

// ErrMissingAPIKey is returned when the transcription credential is not set.
var ErrMissingAPIKey = errors.New("transcription api key is not set")

// Config represents the complete relay configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Relay   RelayConfig   `yaml:"relay"`
	Remote  RemoteConfig  `yaml:"remote"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig contains the producer facing WebSocket listener configuration
type ServerConfig struct {
	Address         string   `yaml:"address"`
	Port            int      `yaml:"port"`
	Path            string   `yaml:"path"`
	ReadBufferSize  int      `yaml:"read_buffer_size"`
	WriteBufferSize int      `yaml:"write_buffer_size"`
	AllowedOrigins  []string `yaml:"allowed_origins"` // empty allows any origin
}

// RelayConfig bounds a session while its remote connection is being established
type RelayConfig struct {
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`    // 0 disables
	MaxPendingFrames int           `yaml:"max_pending_frames"` // 0 means unbounded
}

// RemoteConfig contains the transcription backend configuration
type RemoteConfig struct {
	Backend          string        `yaml:"backend"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	URL              string        `yaml:"url"`
	Model            string        `yaml:"model"`
	Language         string        `yaml:"language"`
	Encoding         string        `yaml:"encoding"`
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	Punctuate        bool          `yaml:"punctuate"`
	InterimResults   bool          `yaml:"interim_results"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// APIKey is resolved from the APIKeyEnv environment variable and never
	// read from the file.
	APIKey string `yaml:"-"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig contains the optional Prometheus listener configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			Path:            "/",
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
		},
		Relay: RelayConfig{
			ConnectTimeout:   10 * time.Second,
			MaxPendingFrames: 1000,
		},
		Remote: RemoteConfig{
			Backend:          BackendDeepgram,
			APIKeyEnv:        DefaultAPIKeyEnv,
			Model:            "nova-2",
			Encoding:         "opus",
			Channels:         1,
			Punctuate:        true,
			InterimResults:   true,
			HandshakeTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment. Variables from envFiles are loaded first; with
// no envFiles a .env file in the working directory is used if present.
// The returned configuration is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadEnvFiles(envFiles []string) error {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		envFiles = []string{".env"}
	}

	if err := godotenv.Load(envFiles...); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

// applyEnv resolves the credential and applies environment overrides.
func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if c.Remote.APIKeyEnv == "" {
		c.Remote.APIKeyEnv = DefaultAPIKeyEnv
	}
	c.Remote.APIKey = strings.TrimSpace(os.Getenv(c.Remote.APIKeyEnv))

	return nil
}

// Validate performs validation of the whole configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay config: %w", err)
	}

	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("path must start with '/', got %q", s.Path)
	}
	if s.ReadBufferSize < 0 || s.WriteBufferSize < 0 {
		return errors.New("buffer sizes must not be negative")
	}
	return nil
}

// Validate validates relay configuration
func (r *RelayConfig) Validate() error {
	if r.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative, got %s", r.ConnectTimeout)
	}
	if r.MaxPendingFrames < 0 {
		return fmt.Errorf("max_pending_frames must not be negative, got %d", r.MaxPendingFrames)
	}
	return nil
}

// Validate validates remote configuration
func (r *RemoteConfig) Validate() error {
	switch r.Backend {
	case BackendDeepgram, BackendDeepgramSDK, BackendGoogle:
	default:
		return fmt.Errorf("unknown backend %q", r.Backend)
	}

	if r.APIKey == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, r.APIKeyEnv)
	}

	if r.SampleRate < 0 || r.Channels < 0 {
		return errors.New("sample_rate and channels must not be negative")
	}
	if r.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake_timeout must not be negative, got %s", r.HandshakeTimeout)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", m.Address, err)
	}
	return nil
}
