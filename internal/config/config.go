// Package config resolves the user-scoped install layout and optional overrides.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDiscoveryTTL is how long a discovery snapshot is served without re-scanning.
	DefaultDiscoveryTTL = 5000 * time.Millisecond
	// DefaultPullTimeout bounds the upstream pull; the git process tree is killed on expiry.
	DefaultPullTimeout = 15 * time.Second
	// DefaultPersona is selected on startup when present on disk.
	DefaultPersona = "strict"

	// ServiceName tags every log line.
	ServiceName = "opencode-personas"
	// ConfigFileName lives next to the host configuration.
	ConfigFileName = "personas.yaml"
)

// DefaultBundledPersonas ship with the upstream repository and are kept in sync by updates.
var DefaultBundledPersonas = []string{"strict", "gopnik"}

// Config holds paths and settings. All paths are absolute after Load.
type Config struct {
	PersonasDir     string        `yaml:"personas_dir"`     // Persona markdown files
	SourceRepoDir   string        `yaml:"source_repo_dir"`  // Upstream git working copy
	PluginTarget    string        `yaml:"plugin_target"`    // Installed plugin entry file
	CommandsDir     string        `yaml:"commands_dir"`     // Installed command descriptors
	LogFile         string        `yaml:"log_file"`         // Empty means stderr
	DefaultPersona  string        `yaml:"default_persona"`  // Selected on startup if discovered
	BundledPersonas []string      `yaml:"bundled_personas"` // Persona files copied on update
	DiscoveryTTL    time.Duration `yaml:"discovery_ttl"`
	PullTimeout     time.Duration `yaml:"pull_timeout"`
	WatchPersonas   bool          `yaml:"watch_personas"` // Invalidate discovery on directory changes
	AutoUpdate      bool          `yaml:"auto_update"`    // Run the synchronizer on new sessions
}

// Default returns the layout rooted at the given home directory.
func Default(home string) *Config {
	configDir := filepath.Join(home, ".config", "opencode")
	return &Config{
		PersonasDir:     filepath.Join(configDir, "personas"),
		SourceRepoDir:   filepath.Join(home, ".local", "share", "opencode-personas"),
		PluginTarget:    filepath.Join(configDir, "plugins", "opencode-personas.ts"),
		CommandsDir:     filepath.Join(configDir, "commands"),
		LogFile:         filepath.Join(home, ".local", "state", "opencode-personas", "personas.log"),
		DefaultPersona:  DefaultPersona,
		BundledPersonas: append([]string(nil), DefaultBundledPersonas...),
		DiscoveryTTL:    DefaultDiscoveryTTL,
		PullTimeout:     DefaultPullTimeout,
		WatchPersonas:   true,
		AutoUpdate:      true,
	}
}

// DefaultPath returns the override file location for the given home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".config", "opencode", ConfigFileName)
}

// Load builds the configuration for home, applying the YAML file at path on top
// of the defaults. A missing file is not an error; an explicit path that does
// not exist is.
func Load(home, path string) (*Config, error) {
	cfg := Default(home)

	explicit := path != ""
	if !explicit {
		path = DefaultPath(home)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.expand(home)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make the plugin misbehave silently.
func (c *Config) Validate() error {
	if c.PersonasDir == "" {
		return fmt.Errorf("personas_dir must not be empty")
	}
	if c.DiscoveryTTL < 0 {
		return fmt.Errorf("discovery_ttl must not be negative")
	}
	if c.PullTimeout <= 0 {
		return fmt.Errorf("pull_timeout must be positive")
	}
	for _, name := range c.BundledPersonas {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("invalid bundled persona name %q", name)
		}
	}
	return nil
}

// expand resolves ~ in every path field.
func (c *Config) expand(home string) {
	for _, p := range []*string{&c.PersonasDir, &c.SourceRepoDir, &c.PluginTarget, &c.CommandsDir, &c.LogFile} {
		*p = ExpandHome(home, *p)
	}
}

// ExpandHome expands a leading ~ to home.
func ExpandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		return home
	}
	return path
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
