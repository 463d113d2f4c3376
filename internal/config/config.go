package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// FileName is the optional per-workspace configuration file.
const FileName = "jurify.yml"

// Config models jurify.yml.
type Config struct {
	Webhook     WebhookConfig     `yaml:"webhook" json:"webhook"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`
	Log         LogConfig         `yaml:"log" json:"log"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

type WebhookConfig struct {
	URL             string `yaml:"url" json:"url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	Origin          string `yaml:"origin" json:"origin"`
	UserAgent       string `yaml:"user_agent" json:"user_agent"`
	Source          string `yaml:"source" json:"source"`
	Version         string `yaml:"version" json:"version"`
	MaxResponseSize string `yaml:"max_response_size" json:"max_response_size"`
}

// Timeout returns the hard per-request deadline.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// MaxResponseBytes parses MaxResponseSize ("10MB", "512KiB", ...).
func (w WebhookConfig) MaxResponseBytes() int64 {
	n, err := units.FromHumanSize(w.MaxResponseSize)
	if err != nil {
		return 0
	}
	return n
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn,omitempty"`
}

type DiagnosticsConfig struct {
	Backend   string `yaml:"backend" json:"backend"`
	Capacity  int    `yaml:"capacity" json:"capacity"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr,omitempty"`
	RedisDB   int    `yaml:"redis_db" json:"redis_db,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr" json:"addr"`
	BasePath       string `yaml:"base_path" json:"base_path"`
	JWTSecret      string `yaml:"jwt_secret" json:"-"`
	RateLimitRPM   int    `yaml:"rate_limit_rpm" json:"rate_limit_rpm"`
	RateLimitBurst int    `yaml:"rate_limit_burst" json:"rate_limit_burst"`
	TrustProxy     bool   `yaml:"trust_proxy" json:"trust_proxy"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return errors.New("config.webhook.url is required")
	}
	if c.Webhook.TimeoutSeconds <= 0 {
		return errors.New("config.webhook.timeout_seconds must be positive")
	}
	if c.Webhook.MaxResponseSize != "" {
		size, err := units.FromHumanSize(c.Webhook.MaxResponseSize)
		if err != nil {
			return errors.Wrap(err, "config.webhook.max_response_size")
		}
		if size <= 0 {
			return errors.New("config.webhook.max_response_size must be positive")
		}
	}
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config.database.dsn is required for postgres")
		}
	default:
		return errors.Newf("config.database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	switch c.Diagnostics.Backend {
	case "file":
	case "redis":
		if strings.TrimSpace(c.Diagnostics.RedisAddr) == "" {
			return errors.New("config.diagnostics.redis_addr is required for redis")
		}
	default:
		return errors.Newf("config.diagnostics.backend must be file or redis, got %q", c.Diagnostics.Backend)
	}
	if c.Diagnostics.Capacity <= 0 {
		return errors.New("config.diagnostics.capacity must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Newf("config.log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Server.RateLimitRPM < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("config.server rate limits cannot be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads the workspace config, falling back to defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `webhook:
  url: https://jurify-jairo.michelesara27.workers.dev/
  timeout_seconds: 75
  origin: http://localhost:8080
  user_agent: Jurify-App/1.0
  source: jurify-app
  version: "1.0"
  max_response_size: 10MB

database:
  driver: sqlite
  dsn: ""

diagnostics:
  backend: file
  capacity: 50
  redis_addr: localhost:6379
  redis_db: 0

log:
  level: info
  format: text

server:
  addr: 127.0.0.1:8080
  base_path: /v1
  jwt_secret: ""
  rate_limit_rpm: 120
  rate_limit_burst: 20
  trust_proxy: false
`
