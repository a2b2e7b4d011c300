package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskdesk.yml.
type Config struct {
	References struct {
		Task    RefFormat `yaml:"task"`
		Receive RefFormat `yaml:"receive"`
	} `yaml:"references"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"auth"`
	Notifications struct {
		ListLimit int `yaml:"list_limit"`
	} `yaml:"notifications"`
}

// RefFormat controls how a sequence value becomes a reference string.
type RefFormat struct {
	Prefix string `yaml:"prefix"`
	Pad    int    `yaml:"pad"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.References.Task.Prefix == "" {
		return fmt.Errorf("config.references.task.prefix is required")
	}
	if c.References.Receive.Prefix == "" {
		return fmt.Errorf("config.references.receive.prefix is required")
	}
	if c.References.Task.Pad < 0 || c.References.Receive.Pad < 0 {
		return fmt.Errorf("reference pad must not be negative")
	}
	if c.Notifications.ListLimit < 0 {
		return fmt.Errorf("config.notifications.list_limit must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdesk.yml")
}

// Load reads and validates config from the workspace, falling back to
// defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
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

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.References.Task = RefFormat{Prefix: "TSK", Pad: 4}
	cfg.References.Receive = RefFormat{Prefix: "RCV", Pad: 4}
	cfg.Server.Addr = ":8970"
	cfg.Server.BasePath = "/v0"
	cfg.Notifications.ListLimit = 50
	return &cfg
}

// GenerateDefault returns the default config as YAML for bootstrap.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `references:
  task:
    prefix: TSK
    pad: 4
  receive:
    prefix: RCV
    pad: 4

server:
  addr: ":8970"
  base_path: /v0

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false

notifications:
  list_limit: 50
`
