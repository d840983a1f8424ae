// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultIconSize      = 16
	DefaultThemeName     = "hicolor"
	MaxIconSize          = 512
	DefaultRetryAttempts = 3
)

// Config represents the sniclient configuration.
type Config struct {
	Icons  IconsConfig `toml:"icons"`
	Theme  ThemeConfig `toml:"theme"`
	Timing Timings     `toml:"timing"`
}

// IconsConfig holds icon sizing and per-item overrides.
type IconsConfig struct {
	Size        int          `toml:"size"`         // Override, 0 = use default_size
	DefaultSize int          `toml:"default_size"` // Size used when no override is set
	Custom      []CustomIcon `toml:"custom"`
}

// CustomIcon replaces the icons of the item whose Id matches.
type CustomIcon struct {
	ID        string `toml:"id"`
	Normal    string `toml:"normal"`
	Attention string `toml:"attention"`
}

// ThemeConfig holds icon theme lookup settings.
type ThemeConfig struct {
	Name        string   `toml:"name"`
	SearchPaths []string `toml:"search_paths"` // Empty = XDG data dirs
}

// Timings holds the delays used by the item and icon machinery.
type Timings struct {
	Debounce        Duration `toml:"debounce"`
	RetryInterval   Duration `toml:"retry_interval"`
	RetryAttempts   int      `toml:"retry_attempts"`
	LivenessGrace   Duration `toml:"liveness_grace"`
	CacheLifetime   Duration `toml:"cache_lifetime"`
	CacheGCInterval Duration `toml:"cache_gc_interval"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Icons: IconsConfig{
			Size:        0,
			DefaultSize: DefaultIconSize,
			Custom:      []CustomIcon{},
		},
		Theme: ThemeConfig{
			Name:        DefaultThemeName,
			SearchPaths: []string{},
		},
		Timing: DefaultTimings(),
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "sniclient", "config.toml")
}

// IconSearchPaths returns the icon directories derived from the XDG data dirs.
func IconSearchPaths() []string {
	var dirs []string

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "icons"))
	}

	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, dir := range strings.Split(dataDirs, ":") {
		if dir == "" {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, "icons"))
	}

	return append(dirs, "/usr/share/pixmaps")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Icons.Size < 0 || c.Icons.Size > MaxIconSize {
		return fmt.Errorf("icons.size must be between 0 and %d, got %d", MaxIconSize, c.Icons.Size)
	}
	if c.Icons.DefaultSize < 1 || c.Icons.DefaultSize > MaxIconSize {
		return fmt.Errorf("icons.default_size must be between 1 and %d, got %d", MaxIconSize, c.Icons.DefaultSize)
	}

	seen := make(map[string]bool, len(c.Icons.Custom))
	for _, custom := range c.Icons.Custom {
		if custom.ID == "" {
			return errors.New("icons.custom entry without id")
		}
		if seen[custom.ID] {
			return fmt.Errorf("duplicate icons.custom entry for %q", custom.ID)
		}
		seen[custom.ID] = true
	}

	return c.Timing.Validate()
}

// EffectiveIconSize returns the override size if set, otherwise the default size.
func (c *Config) EffectiveIconSize() int {
	if c.Icons.Size > 0 {
		return c.Icons.Size
	}
	return c.Icons.DefaultSize
}

// ThemeSearchPaths returns the configured search paths with ~ expanded,
// or the XDG icon directories when none are configured.
func (c *Config) ThemeSearchPaths() []string {
	if len(c.Theme.SearchPaths) == 0 {
		return IconSearchPaths()
	}
	paths := make([]string, 0, len(c.Theme.SearchPaths))
	for _, p := range c.Theme.SearchPaths {
		paths = append(paths, expandPath(p))
	}
	return paths
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
