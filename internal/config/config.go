// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package config loads the binpack CLI configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/suprsokr/go-binpack"
	"github.com/suprsokr/go-binpack/backup"
)

const (
	// AppName is the application name.
	AppName = "binpack"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
)

// ErrInvalidConfig is returned when a loaded configuration is unusable.
var ErrInvalidConfig = errors.New("invalid config")

// FormatConfig holds the pack format constants.
type FormatConfig struct {
	Layout          string `mapstructure:"layout" toml:"layout"`
	Magic           uint32 `mapstructure:"magic" toml:"magic"`
	CheckMagic      bool   `mapstructure:"check_magic" toml:"check_magic"`
	Alignment       int    `mapstructure:"alignment" toml:"alignment"`
	HeaderAlignment int    `mapstructure:"header_alignment" toml:"header_alignment"`
	Fill            uint8  `mapstructure:"fill" toml:"fill"`
	MaxEntries      int    `mapstructure:"max_entries" toml:"max_entries"`
}

// Config is the CLI configuration.
type Config struct {
	// Root is the extracted game filesystem used by the packs command.
	Root string `mapstructure:"root" toml:"root"`
	// Packs lists the pack paths looked up under Root.
	Packs    []string     `mapstructure:"packs" toml:"packs"`
	LogLevel string       `mapstructure:"log_level" toml:"log_level"`
	Workers  int          `mapstructure:"workers" toml:"workers"`
	Backup   string       `mapstructure:"backup" toml:"backup"`
	Format   FormatConfig `mapstructure:"format" toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	f := binpack.DefaultFormat()
	return &Config{
		Root:     "",
		Packs:    append([]string(nil), binpack.KnownPackFiles...),
		LogLevel: "info",
		Workers:  4,
		Backup:   string(backup.None),
		Format: FormatConfig{
			Layout:          f.Layout.String(),
			Magic:           f.Magic,
			CheckMagic:      f.CheckMagic,
			Alignment:       f.Alignment,
			HeaderAlignment: f.HeaderAlignment,
			Fill:            f.Fill,
			MaxEntries:      f.MaxEntries,
		},
	}
}

// Dir returns the binpack configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the path of the config file in Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// Load reads the configuration. An explicit path must exist; otherwise the
// file in Dir is used when present and defaults apply when it is not. The
// returned string is the file that was read, or empty.
func Load(path string) (*Config, string, error) {
	v := viper.New()
	v.SetConfigType(ConfigFileExt)

	defaults := DefaultConfig()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("packs", defaults.Packs)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("backup", defaults.Backup)
	v.SetDefault("format.layout", defaults.Format.Layout)
	v.SetDefault("format.magic", defaults.Format.Magic)
	v.SetDefault("format.check_magic", defaults.Format.CheckMagic)
	v.SetDefault("format.alignment", defaults.Format.Alignment)
	v.SetDefault("format.header_alignment", defaults.Format.HeaderAlignment)
	v.SetDefault("format.fill", defaults.Format.Fill)
	v.SetDefault("format.max_entries", defaults.Format.MaxEntries)

	resolved := ""
	if path != "" {
		if !fileExists(path) {
			return nil, "", fmt.Errorf("config file not found: %s", path)
		}
		resolved = path
	} else {
		def, err := DefaultPath()
		if err == nil && fileExists(def) {
			resolved = def
		}
	}

	if resolved != "" {
		v.SetConfigFile(resolved)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := backup.ParseCodec(c.Backup); err != nil {
		return fmt.Errorf("%w: backup: %v", ErrInvalidConfig, err)
	}
	if _, err := c.PackFormat(); err != nil {
		return fmt.Errorf("%w: format: %v", ErrInvalidConfig, err)
	}
	return nil
}

// PackFormat converts the format section into a binpack.Format.
func (c *Config) PackFormat() (binpack.Format, error) {
	layout, err := binpack.ParseLayout(c.Format.Layout)
	if err != nil {
		return binpack.Format{}, err
	}
	f := binpack.Format{
		Layout:          layout,
		Magic:           c.Format.Magic,
		CheckMagic:      c.Format.CheckMagic,
		Alignment:       c.Format.Alignment,
		HeaderAlignment: c.Format.HeaderAlignment,
		Fill:            c.Format.Fill,
		MaxEntries:      c.Format.MaxEntries,
	}
	if err := f.Validate(); err != nil {
		return binpack.Format{}, err
	}
	return f, nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Codec returns the configured backup codec.
func (c *Config) Codec() backup.Codec {
	codec, err := backup.ParseCodec(c.Backup)
	if err != nil {
		return backup.None
	}
	return codec
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Write saves cfg to path as TOML. An existing file is only replaced when
// force is set.
func Write(path string, cfg *Config, force bool) error {
	if fileExists(path) && !force {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
