// Package config loads the desktop app configuration from YAML with
// environment variable expansion, so secrets can live in the environment (or
// a .env file) instead of the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Gateway struct {
		// Endpoint is the remote AI analysis endpoint all task requests go to.
		Endpoint string `yaml:"endpoint"`
		// TokenURL is the refresh-token exchange endpoint.
		TokenURL string `yaml:"tokenUrl"`
	} `yaml:"gateway"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var c Config
	c.Gateway.Endpoint = "https://api.timesage.app/v1/ai/tasks"
	c.Gateway.TokenURL = "https://api.timesage.app/v1/auth/token"
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 27610
	c.Database.Path = defaultDBPath()
	c.Logging.Level = "info"
	return c
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML configuration with environment variable
// expansion ($VAR and ${VAR}) applied before decoding.
func LoadFromBytes(data []byte) (Config, error) {
	c := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if c.Gateway.Endpoint == "" {
		return Config{}, fmt.Errorf("gateway.endpoint must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return Config{}, fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return c, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", "timesage.db")
	}
	return filepath.Join(home, ".timesage", "timesage.db")
}
