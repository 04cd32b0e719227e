// Package config loads the application configuration for the scenemerge
// binaries. Library packages stay configuration-free; only the cmd layer
// reads files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
)

// Config is the application configuration.
type Config struct {
	Gemini Gemini `yaml:"gemini"`
	Fetch  Fetch  `yaml:"fetch"`
	Server Server `yaml:"server"`
	Watch  Watch  `yaml:"watch"`
}

// Gemini configures the merge provider.
type Gemini struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Fetch configures the resilient image fetcher.
type Fetch struct {
	// Proxies overrides the built-in fallback list. Order matters.
	Proxies []string `yaml:"proxies"`

	// AttemptTimeoutSeconds caps one load attempt. Zero keeps the default;
	// negative disables the bound.
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds"`

	// Quality is the re-encode quality (1-100).
	Quality int `yaml:"quality"`
}

// Server configures the HTTP front-end.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Watch configures drop-folder mode.
type Watch struct {
	// Dir is the folder monitored for new product photos.
	Dir string `yaml:"dir"`

	// ScenePath is the location photo every dropped product is composited
	// into.
	ScenePath string `yaml:"scene_path"`

	// OutputDir receives the composites.
	OutputDir string `yaml:"output_dir"`
}

// Load reads and parses the configuration file. A missing path yields the
// zero configuration so binaries can run on flags and environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// applyEnv lets the environment override file values for credentials.
func (c *Config) applyEnv() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
}

// Validate checks the configured values for internal consistency.
func (c *Config) Validate() error {
	if c.Fetch.Quality < 0 || c.Fetch.Quality > 100 {
		return fmt.Errorf("fetch.quality must be between 0 and 100, got %d", c.Fetch.Quality)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Watch.Dir != "" && c.Watch.ScenePath == "" {
		return fmt.Errorf("watch.scene_path is required when watch.dir is set")
	}
	return nil
}

// Proxies converts the configured list. Nil means "use the defaults"; an
// explicitly empty list disables proxy fallback.
func (c *Config) Proxies() (imagesource.ProxyList, bool) {
	if c.Fetch.Proxies == nil {
		return nil, false
	}
	list := make(imagesource.ProxyList, 0, len(c.Fetch.Proxies))
	for _, raw := range c.Fetch.Proxies {
		list = append(list, imagesource.ProxyEndpoint(raw))
	}
	return list, true
}

// AttemptTimeout converts the configured bound.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Fetch.AttemptTimeoutSeconds) * time.Second
}

// ListenAddr renders the server address, defaulting to port 8080.
func (c *Config) ListenAddr() string {
	host := c.Server.Host
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}
