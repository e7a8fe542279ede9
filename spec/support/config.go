// Package support provides test helpers and fixtures for the tasksync CLI specs.
package support

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// WorkspaceConfig represents a workspace configuration.
type WorkspaceConfig struct {
	Backend          string `yaml:"backend"`
	Path             string `yaml:"path,omitempty"`    // local backend
	Repo             string `yaml:"repo,omitempty"`    // github backend
	Team             string `yaml:"team,omitempty"`    // linear backend
	Project          int    `yaml:"project,omitempty"` // GitHub Projects v2 number
	ProjectDateField string `yaml:"project_date_field,omitempty"`
	GitSync          bool   `yaml:"git_sync,omitempty"`
}

// DefaultsConfig represents the defaults section of config.
type DefaultsConfig struct {
	Format   string `yaml:"format,omitempty"`
	SyncPair string `yaml:"sync_pair,omitempty"`
}

// SyncPairConfig represents a sync_pairs entry.
type SyncPairConfig struct {
	Workspaces       []string `yaml:"workspaces"`
	Direction        string   `yaml:"direction"`
	ConflictStrategy string   `yaml:"conflict_strategy,omitempty"`
	SyncTags         bool     `yaml:"sync_tags,omitempty"`
	SyncSections     bool     `yaml:"sync_sections,omitempty"`
	DryRun           bool     `yaml:"dry_run,omitempty"`
	BatchSize        int      `yaml:"batch_size,omitempty"`
}

// Config represents the full tasksync configuration file.
type Config struct {
	Version    int                         `yaml:"version"`
	Defaults   *DefaultsConfig             `yaml:"defaults,omitempty"`
	Workspaces map[string]*WorkspaceConfig `yaml:"workspaces,omitempty"`
	SyncPairs  map[string]*SyncPairConfig  `yaml:"sync_pairs,omitempty"`
}

// ConfigGenerator creates config.yaml files for test workspaces.
type ConfigGenerator struct{}

// NewConfigGenerator creates a new config generator.
func NewConfigGenerator() *ConfigGenerator {
	return &ConfigGenerator{}
}

// Generate creates a .tasksync/config.yaml file from a Config struct.
func (g *ConfigGenerator) Generate(env *TestEnv, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return env.CreateFile(".tasksync/config.yaml", string(content))
}

// GenerateFromYAML writes a raw YAML string as the config file, validating
// it parses first.
func (g *ConfigGenerator) GenerateFromYAML(env *TestEnv, yamlContent string) error {
	var cfg map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return env.CreateFile(".tasksync/config.yaml", yamlContent)
}

// GenerateLocalPair creates a two-workspace local<->local config named
// nameA/nameB, connected by a sync pair named pairName with the given
// direction ("one-way" or "two-way").
func (g *ConfigGenerator) GenerateLocalPair(env *TestEnv, nameA, pathA, nameB, pathB, pairName, direction string) error {
	cfg := &Config{
		Version: 1,
		Defaults: &DefaultsConfig{
			Format:   "table",
			SyncPair: pairName,
		},
		Workspaces: map[string]*WorkspaceConfig{
			nameA: {Backend: "local", Path: pathA},
			nameB: {Backend: "local", Path: pathB},
		},
		SyncPairs: map[string]*SyncPairConfig{
			pairName: {
				Workspaces:       []string{nameA, nameB},
				Direction:        direction,
				ConflictStrategy: "last-write-wins",
				SyncTags:         true,
				SyncSections:     true,
			},
		},
	}
	return g.Generate(env, cfg)
}
