package app

import (
	"fmt"

	coreconfig "github.com/m3rciful/supportbot/core/config"
	"github.com/m3rciful/supportbot/core/database"
)

// SupportConfig holds the optional link buttons of the user main menu.
type SupportConfig struct {
	WebsiteURL string `yaml:"website_url" envconfig:"SUPPORT_WEBSITE_URL"`
	ChannelURL string `yaml:"channel_url" envconfig:"SUPPORT_CHANNEL_URL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Support  SupportConfig   `yaml:"support"`
}

// CoreConfig exposes the embedded runtime configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path (optional) and the environment, then validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
