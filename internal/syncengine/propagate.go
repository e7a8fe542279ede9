package syncengine

import (
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/changedetect"
	"github.com/alexbrand/tasksync/internal/syncstate"
)

// propagateCreate mirrors spec.md §4.5 step 3's created branch: if source's
// item is already registered (recovery after partial sync), it is a no-op.
// Otherwise it creates the task on target, applies the fields CreateTask
// does not accept via a follow-up UpdateTask, and registers a new SyncItem
// binding both ids and both content hashes.
func propagateCreate(source, target backend.Backend, store *syncstate.Store, change changedetect.ItemChange, dryRun bool) error {
	if existing, err := store.FindSyncItemByBackendID(source.ID(), change.ItemID); err == nil && existing != nil {
		return nil
	}

	task := change.NewValues
	if dryRun {
		return nil
	}

	created, err := target.CreateTask(backend.TaskInput{
		Name:        task.Name,
		Notes:       task.Notes,
		DueOn:       task.DueOn,
		Priority:    task.Priority,
		IsMilestone: task.IsMilestone,
	})
	if err != nil {
		return err
	}

	if task.Completed || task.StartOn != nil || task.Assignee != nil || len(task.Memberships) > 0 {
		completed := task.Completed
		memberships := task.Memberships
		startOn := task.StartOn
		assignee := task.Assignee
		if _, err := target.UpdateTask(created.Gid, backend.TaskPartial{
			Completed:   &completed,
			StartOn:     &startOn,
			Assignee:    &assignee,
			Memberships: &memberships,
		}); err != nil {
			return err
		}
	}

	sourceHash, err := changedetect.ContentHash(*task)
	if err != nil {
		return err
	}
	targetTask, err := target.GetTask(created.Gid)
	if err != nil {
		return err
	}
	targetHash, err := changedetect.ContentHash(*targetTask)
	if err != nil {
		return err
	}

	_, err = store.CreateSyncItem(
		map[string]string{source.ID(): task.Gid, target.ID(): created.Gid},
		map[string]string{source.ID(): sourceHash, target.ID(): targetHash},
	)
	return err
}

// propagateUpdate mirrors spec.md §4.5 step 3's updated branch. If no
// SyncItem exists yet it degrades to create.
func propagateUpdate(source, target backend.Backend, store *syncstate.Store, change changedetect.ItemChange, dryRun bool) error {
	item, err := store.FindSyncItemByBackendID(source.ID(), change.ItemID)
	if err != nil {
		return propagateCreate(source, target, store, change, dryRun)
	}

	targetGid := item.BackendIDs[target.ID()]
	currentTarget, err := target.GetTask(targetGid)
	if err != nil {
		return err
	}

	diffs := changedetect.DetectFieldChanges(*currentTarget, *change.NewValues)
	partial, nonEmpty := buildPartialFromDiffs(*change.NewValues, diffs)

	if dryRun {
		return nil
	}

	if nonEmpty {
		if _, err := target.UpdateTask(targetGid, partial); err != nil {
			return err
		}
	}

	sourceHash, err := changedetect.ContentHash(*change.NewValues)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = store.UpdateSyncItem(item.SyncID, syncstate.ItemPartial{
		Versions:      map[string]string{source.ID(): sourceHash},
		LastSyncTimes: map[string]time.Time{source.ID(): now, target.ID(): now},
	})
	return err
}

// propagateDelete mirrors spec.md §4.5 step 3's deleted branch.
func propagateDelete(source, target backend.Backend, store *syncstate.Store, change changedetect.ItemChange, dryRun bool) error {
	item, err := store.FindSyncItemByBackendID(source.ID(), change.ItemID)
	if err != nil {
		return nil
	}

	if dryRun {
		return nil
	}

	targetGid := item.BackendIDs[target.ID()]
	if err := target.DeleteTask(targetGid); err != nil {
		return err
	}
	return store.DeleteSyncItem(item.SyncID)
}

// propagate dispatches change to the right propagateX function and bumps
// the matching counter in stats.
func propagate(source, target backend.Backend, store *syncstate.Store, change changedetect.ItemChange, dryRun bool, stats *Stats) error {
	switch change.ChangeType {
	case changedetect.Created:
		if err := propagateCreate(source, target, store, change, dryRun); err != nil {
			return err
		}
		stats.ItemsCreated++
	case changedetect.Updated:
		if err := propagateUpdate(source, target, store, change, dryRun); err != nil {
			return err
		}
		stats.ItemsUpdated++
	case changedetect.Deleted:
		if err := propagateDelete(source, target, store, change, dryRun); err != nil {
			return err
		}
		stats.ItemsDeleted++
	}
	return nil
}
