// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads mount configuration from a YAML file.
//
// Configuration is loaded from a single file specified by the
// UNDOFS_CONFIG environment variable or the --config flag. There is
// no discovery and no fallback: if neither is given, Load fails. This
// keeps a mount's configuration deterministic and auditable.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is a single mount's configuration.
type Config struct {
	// BackingRoot is the directory holding the node tree.
	BackingRoot string `yaml:"backing_root"`

	// Mountpoint is the directory the filesystem is mounted on.
	Mountpoint string `yaml:"mountpoint"`

	// LogPath is where structured log lines are appended. Relative to
	// BackingRoot if not absolute. Defaults to "log.txt".
	LogPath string `yaml:"log_path"`

	// AllowOther permits other users, including root, to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// StrictRmdir makes rmdir fail with ENOTEMPTY if the directory has
	// any live (non-tombstoned) child, instead of tombstoning
	// unconditionally.
	StrictRmdir bool `yaml:"strict_rmdir"`

	// Foreground is passed through to fsnode.Options and has no effect:
	// the mount command never daemonizes and always stays attached to
	// its controlling terminal.
	Foreground bool `yaml:"foreground"`
}

// Default returns a Config with LogPath set to "log.txt" and every
// other field at its zero value.
// It exists so every field has a sensible starting point before a file
// is loaded, not as a substitute for one — BackingRoot and Mountpoint
// are still required afterward.
func Default() *Config {
	return &Config{
		LogPath: "log.txt",
	}
}

// Load loads configuration from the path named by UNDOFS_CONFIG. It
// fails if the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv("UNDOFS_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("UNDOFS_CONFIG environment variable not set; " +
			"set it to a config file path, or pass --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = "log.txt"
	}
	return cfg, nil
}

// Validate checks the configuration for errors, returning every
// problem found rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.BackingRoot == "" {
		errs = append(errs, fmt.Errorf("backing_root is required"))
	}
	if c.Mountpoint == "" {
		errs = append(errs, fmt.Errorf("mountpoint is required"))
	}
	if c.BackingRoot != "" && c.Mountpoint != "" && c.BackingRoot == c.Mountpoint {
		errs = append(errs, fmt.Errorf("backing_root and mountpoint must differ"))
	}

	return errors.Join(errs...)
}
