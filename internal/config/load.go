package config

import (
	"fmt"

	"github.com/yndnr/moonlink/internal/infra/confloader"
)

// Load builds the configuration from defaults, the YAML file at path,
// MOONLINK_* environment variables, and flags, then verifies it.
//
// An empty path means the default location, which may be absent.
// An explicit path must exist.
func Load(path string, flags map[string]any) (*Config, error) {
	fileOpt := confloader.WithConfigFile(path)
	if path == "" {
		fileOpt = confloader.WithOptionalConfigFile(DefaultConfigPath())
	}

	cfg := Default()
	loader := confloader.NewLoader(fileOpt, confloader.WithFlags(flags))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
