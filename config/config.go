// Package config loads the host configuration of the simulator from YAML.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/hashicorp/go-hclog"
	yaml "gopkg.in/yaml.v2"
)

// Log configures structured logging.
type Log struct {
	Level string `yaml:"level"`

	// File receives log records. Empty means stderr.
	File string `yaml:"file"`
}

// PIT configures the scheduler timer.
type PIT struct {
	Hz int `yaml:"hz"`
}

// RTC configures the real time clock.
type RTC struct {
	Hz int `yaml:"hz"`
}

// FS selects the filesystem image.
type FS struct {
	// Image is a filesystem image on the host. Empty means the image is
	// built from the bundled programs.
	Image string `yaml:"image"`

	// ExtraDir is a host directory whose regular files are added to a
	// built image.
	ExtraDir string `yaml:"extra_dir"`
}

// Display configures the host renderer.
type Display struct {
	RefreshHz int `yaml:"refresh_hz"`
}

// Config is the simulator configuration.
type Config struct {
	Log     Log     `yaml:"log"`
	PIT     PIT     `yaml:"pit"`
	RTC     RTC     `yaml:"rtc"`
	FS      FS      `yaml:"fs"`
	Display Display `yaml:"display"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:     Log{Level: "info"},
		PIT:     PIT{Hz: 100},
		RTC:     RTC{Hz: 1024},
		Display: Display{RefreshHz: 20},
	}
}

// Parse applies the YAML document in data on top of the defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration file at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if hclog.LevelFromString(c.Log.Level) == hclog.NoLevel {
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}

	for _, rate := range []struct {
		name string
		hz   int
	}{
		{"pit.hz", c.PIT.Hz},
		{"rtc.hz", c.RTC.Hz},
		{"display.refresh_hz", c.Display.RefreshHz},
	} {
		if rate.hz <= 0 {
			return fmt.Errorf("config: %s must be positive; got %d", rate.name, rate.hz)
		}
	}

	if c.RTC.Hz&(c.RTC.Hz-1) != 0 {
		return fmt.Errorf("config: rtc.hz must be a power of two; got %d", c.RTC.Hz)
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
