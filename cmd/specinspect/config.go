package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the specinspect configuration file
// (~/.config/specinspect/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// TempDir is where archives are staged.
	TempDir string `yaml:"temp_dir"`

	// Compress controls zlib compression of MAT output.
	Compress *bool `yaml:"compress"`

	ASCII ASCIIConfig `yaml:"ascii"`
}

// ASCIIConfig holds default column layout settings for text input.
type ASCIIConfig struct {
	Order     *string  `yaml:"order"`
	Dim       *int     `yaml:"dim"`
	Spec      *bool    `yaml:"spec"`
	Delimiter *string  `yaml:"delimiter"`
	SWkHz     *float64 `yaml:"sw_khz"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "specinspect", "config.yaml")
}

// apply overrides config values with flags the user set explicitly.
func (a *ASCIIConfig) apply(c *cli.Command) {
	if c.IsSet("ascii-order") {
		v := c.String("ascii-order")
		a.Order = &v
	}
	if c.IsSet("ascii-dim") || a.Dim == nil {
		v := int(c.Int("ascii-dim"))
		a.Dim = &v
	}
	if c.IsSet("ascii-spec") {
		v := c.Bool("ascii-spec")
		a.Spec = &v
	}
	if c.IsSet("ascii-delimiter") || a.Delimiter == nil {
		v := c.String("ascii-delimiter")
		a.Delimiter = &v
	}
	if c.IsSet("ascii-sw") {
		v := c.Float("ascii-sw")
		a.SWkHz = &v
	}
}

// applyLogConfig applies config file defaults to the logging flags when
// they were not explicitly set.
func applyLogConfig(c *cli.Command, cfg Config, level, format *string) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") && !c.IsSet("debug") {
		*level = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		*format = cfg.LogFormat
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
