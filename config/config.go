// Package config loads micrec settings. Precedence, lowest first: built-in
// defaults, the YAML file, MICREC_* environment variables, command-line
// flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"micrec/hotkey"
)

const DefaultListen = "127.0.0.1:7077"

type Config struct {
	// Device is a device id or name to preselect.
	Device   string `yaml:"device"`
	Listen   string `yaml:"listen"`
	LockMode bool   `yaml:"lock_mode"`
	// Hotkey enables the global press/release hotkey, e.g. "ctrl+shift+space".
	Hotkey string `yaml:"hotkey"`
	// Autoplay plays each finished clip back once.
	Autoplay bool `yaml:"autoplay"`
}

func Default() Config {
	return Config{Listen: DefaultListen, Autoplay: true}
}

func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if env := os.Getenv("MICREC_CONFIG"); env != "" {
		return env, nil
	}
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "micrec", "config.yaml"), nil
}

// Load reads path (a missing file is not an error) and applies the
// environment on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MICREC_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := os.Getenv("MICREC_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("MICREC_HOTKEY"); v != "" {
		cfg.Hotkey = v
	}
	if v := os.Getenv("MICREC_LOCK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MICREC_LOCK: %w", err)
		}
		cfg.LockMode = b
	}
	if v := os.Getenv("MICREC_AUTOPLAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MICREC_AUTOPLAY: %w", err)
		}
		cfg.Autoplay = b
	}
	return nil
}

func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen %q: %w", c.Listen, err)
	}
	if c.Hotkey != "" {
		if _, err := hotkey.ParseCombo(c.Hotkey); err != nil {
			return err
		}
	}
	return nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
