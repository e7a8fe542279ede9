// Package config provides configuration loading and management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the top-level configuration structure.
type Config struct {
	Version    int                  `mapstructure:"version" json:"version"`
	Defaults   Defaults             `mapstructure:"defaults" json:"defaults"`
	Workspaces map[string]Workspace `mapstructure:"workspaces" json:"workspaces"`
	SyncPairs  map[string]SyncPair  `mapstructure:"sync_pairs" json:"sync_pairs"`
}

// Defaults contains global default settings.
type Defaults struct {
	Format   string `mapstructure:"format" json:"format,omitempty"`
	SyncPair string `mapstructure:"sync_pair" json:"sync_pair,omitempty"`
}

// Workspace names one backend connection a SyncPair can reference.
type Workspace struct {
	Backend string `mapstructure:"backend" json:"backend,omitempty"` // local | github | linear

	// local
	Path    string `mapstructure:"path" json:"path,omitempty"`
	GitSync bool   `mapstructure:"git_sync" json:"git_sync,omitempty"`

	// github
	Repo             string `mapstructure:"repo" json:"repo,omitempty"`
	ProjectNumber    int    `mapstructure:"project" json:"project,omitempty"`
	ProjectDateField string `mapstructure:"project_date_field" json:"project_date_field,omitempty"`

	// linear
	Team string `mapstructure:"team" json:"team,omitempty"`

	Default bool `mapstructure:"default" json:"default,omitempty"`
}

// Filter mirrors syncengine.Filter in config-file form; ModifiedAfter is
// parsed as an RFC3339 timestamp by the caller that builds a syncengine.Filter
// from it, and CustomFilter has no config-file representation.
type Filter struct {
	Completed     *bool    `mapstructure:"completed" json:"completed,omitempty"`
	Tags          []string `mapstructure:"tags" json:"tags,omitempty"`
	Sections      []string `mapstructure:"sections" json:"sections,omitempty"`
	Assignees     []string `mapstructure:"assignees" json:"assignees,omitempty"`
	ModifiedAfter string   `mapstructure:"modified_after" json:"modified_after,omitempty"`
}

// SyncPair names a reconciliation run: which workspaces participate, which
// engine direction connects them, how conflicts are resolved, which related
// data travels alongside tasks, and what gets filtered out.
type SyncPair struct {
	Workspaces       []string `mapstructure:"workspaces" json:"workspaces"`
	Direction        string   `mapstructure:"direction" json:"direction"` // one-way | two-way | n-way
	ConflictStrategy string   `mapstructure:"conflict_strategy" json:"conflict_strategy,omitempty"`

	SyncTags         bool `mapstructure:"sync_tags" json:"sync_tags,omitempty"`
	SyncSections     bool `mapstructure:"sync_sections" json:"sync_sections,omitempty"`
	SyncSubtasks     bool `mapstructure:"sync_subtasks" json:"sync_subtasks,omitempty"`
	SyncComments     bool `mapstructure:"sync_comments" json:"sync_comments,omitempty"`
	SyncAttachments  bool `mapstructure:"sync_attachments" json:"sync_attachments,omitempty"`
	SyncDependencies bool `mapstructure:"sync_dependencies" json:"sync_dependencies,omitempty"`
	SyncTimeEntries  bool `mapstructure:"sync_time_entries" json:"sync_time_entries,omitempty"`
	SyncCustomFields bool `mapstructure:"sync_custom_fields" json:"sync_custom_fields,omitempty"`

	DryRun    bool   `mapstructure:"dry_run" json:"dry_run,omitempty"`
	BatchSize int    `mapstructure:"batch_size" json:"batch_size,omitempty"`
	Filter    Filter `mapstructure:"filter" json:"filter,omitempty"`
}

var (
	cfg     *Config
	cfgFile string
)

// configDir returns the configuration directory path.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tasksync"), nil
}

// Init initializes the configuration system.
// Config files are searched in the following order:
// 1. Explicit path via cfgPath parameter (--config flag)
// 2. Project-local: .tasksync/config.yaml (current directory)
// 3. User global: ~/.config/tasksync/config.yaml
func Init(cfgPath string) error {
	cfgFile = cfgPath

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Check for project-local config first
		viper.AddConfigPath(".tasksync")
		// Then check user global config
		configPath, err := configDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(configPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set defaults
	viper.SetDefault("version", 1)
	viper.SetDefault("defaults.format", "table")

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
// Returns nil if Init has not been called.
func Get() *Config {
	return cfg
}

// GetWorkspace returns the workspace configuration for the given name.
func GetWorkspace(name string) (*Workspace, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	ws, ok := cfg.Workspaces[name]
	if !ok {
		return nil, fmt.Errorf("workspace %q not found", name)
	}
	return &ws, nil
}

// GetSyncPair returns the named sync pair, falling back to
// defaults.sync_pair when name is empty, and to the lone configured pair
// when there is exactly one.
func GetSyncPair(name string) (*SyncPair, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("configuration not initialized")
	}
	if len(cfg.SyncPairs) == 0 {
		return nil, "", fmt.Errorf("no sync pairs configured")
	}

	if name != "" {
		sp, ok := cfg.SyncPairs[name]
		if !ok {
			return nil, "", fmt.Errorf("sync pair %q not found", name)
		}
		return &sp, name, nil
	}

	if cfg.Defaults.SyncPair != "" {
		sp, ok := cfg.SyncPairs[cfg.Defaults.SyncPair]
		if ok {
			return &sp, cfg.Defaults.SyncPair, nil
		}
	}

	if len(cfg.SyncPairs) == 1 {
		for spName, sp := range cfg.SyncPairs {
			spCopy := sp
			return &spCopy, spName, nil
		}
	}

	return nil, "", fmt.Errorf("no default sync pair configured")
}

// ConfigFilePath returns the path to the config file being used.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultStatePath returns the directory syncstate.Open roots its per-pair
// state directories under.
func DefaultStatePath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state"), nil
}
