package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/termrun/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Theme         string         `mapstructure:"theme" yaml:"theme"`
	Terminal      TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// TerminalConfig controls the terminal driver and seed dimensions.
type TerminalConfig struct {
	Driver bool `mapstructure:"driver" yaml:"driver"`
	Width  int  `mapstructure:"width" yaml:"width"`
	Height int  `mapstructure:"height" yaml:"height"`
}

// LoggingConfig controls runtime log verbosity.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".termrun", "state"),
		Theme:         string(schema.DefaultTheme),
		Terminal: TerminalConfig{
			Driver: true,
			Width:  80,
			Height: 24,
		},
		Logging: LoggingConfig{
			Debug: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".termrun", "config.yaml"), nil
}
