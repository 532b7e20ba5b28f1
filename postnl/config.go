package postnl

import "github.com/al-bashkir/postnl-go/internal/config"

// Config is the client configuration: portal endpoints, credentials, login
// throttling, transport and logging.
type Config = config.Config

// DefaultConfig returns the configuration for the public PostNL portal.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads a YAML configuration file and applies the POSTNL_*
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
