package config

import (
	"fmt"
	"time"

	"github.com/alexbrand/tasksync/internal/conflict"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

// ToEngineConfig translates a SyncPair's config-file representation into
// the syncengine.Config the chosen engine expects. Callbacks are left zero;
// callers attach OnProgress/OnConflict/OnError themselves.
func (sp SyncPair) ToEngineConfig() (syncengine.Config, error) {
	cfg := syncengine.Config{
		Direction:        syncengine.Direction(sp.Direction),
		ConflictStrategy: conflict.Strategy(sp.ConflictStrategy),
		SyncTags:         sp.SyncTags,
		SyncSections:     sp.SyncSections,
		SyncSubtasks:     sp.SyncSubtasks,
		SyncComments:     sp.SyncComments,
		SyncAttachments:  sp.SyncAttachments,
		SyncDependencies: sp.SyncDependencies,
		SyncTimeEntries:  sp.SyncTimeEntries,
		SyncCustomFields: sp.SyncCustomFields,
		DryRun:           sp.DryRun,
		BatchSize:        sp.BatchSize,
	}
	if cfg.ConflictStrategy == "" {
		cfg.ConflictStrategy = conflict.LastWriteWins
	}

	filter := syncengine.Filter{
		Completed: sp.Filter.Completed,
		Tags:      sp.Filter.Tags,
		Sections:  sp.Filter.Sections,
		Assignees: sp.Filter.Assignees,
	}
	if sp.Filter.ModifiedAfter != "" {
		t, err := time.Parse(time.RFC3339, sp.Filter.ModifiedAfter)
		if err != nil {
			return syncengine.Config{}, fmt.Errorf("config: filter.modified_after: %w", err)
		}
		filter.ModifiedAfter = &t
	}
	cfg.Filter = filter

	return cfg, nil
}
