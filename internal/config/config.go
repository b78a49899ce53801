package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Port   int    `koanf:"port"`
	Assets string `koanf:"assets"`

	GitLab struct {
		URL     string `koanf:"url"`
		Token   string `koanf:"token"`
		Project string `koanf:"project"`
	} `koanf:"gitlab"`

	Webhook struct {
		Secret string `koanf:"secret"`
	} `koanf:"webhook"`
}

// LoadConfig loads the configuration, layering defaults, an optional TOML
// file and ISSUERELAY_-prefixed environment variables.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"port":       3000,
		"assets":     "public",
		"gitlab.url": "https://gitlab.com",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try default locations before falling back to env-only configuration
		defaultPaths := []string{"./issuerelay.toml", "$HOME/.issuerelay.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix ISSUERELAY_
	k.Load(env.Provider("ISSUERELAY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(s), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# issuerelay configuration

port = 3000
assets = "public"

[gitlab]
url = "https://gitlab.example.com"
token = "your-gitlab-token"
project = "12345"

[webhook]
secret = "your-webhook-secret"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is out of range", config.Port)
	}

	if config.GitLab.URL == "" {
		return fmt.Errorf("gitlab url is required")
	}

	if config.GitLab.Token == "" {
		return fmt.Errorf("gitlab token is required")
	}

	if config.GitLab.Project == "" {
		return fmt.Errorf("gitlab project is required")
	}

	if config.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required")
	}

	return nil
}
