package syncengine

import (
	"context"
	"sort"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/changedetect"
	"github.com/alexbrand/tasksync/internal/conflict"
	"github.com/alexbrand/tasksync/internal/syncstate"

	"golang.org/x/sync/errgroup"
)

// TwoWay reconciles changes detected on either of two backends onto the
// other, merging genuine conflicts (spec.md §4.6).
type TwoWay struct {
	A      backend.Backend
	B      backend.Backend
	Store  *syncstate.Store
	Config Config
}

// pairEntry groups the change (if any) each side detected for one
// sync-identity, keyed by syncId when known, else by the new item's gid.
type pairEntry struct {
	syncItem *syncstate.SyncItem
	changeA  *changedetect.ItemChange
	changeB  *changedetect.ItemChange
}

// Sync runs one Two-Way reconciliation pass.
func (e *TwoWay) Sync(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()
	result := &Result{
		Direction: TwoWayDirection,
		Backends:  []string{e.A.ID(), e.B.ID()},
		StartedAt: started,
	}

	e.reportProgress(PhaseDetectingChanges, 0)

	var tasksA, tasksB []backend.Task
	var changesA, changesB []changedetect.ItemChange

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasksA, err = e.A.ListTasks()
		if err != nil {
			return err
		}
		changesA, err = changedetect.Detect(e.A.ID(), tasksA, e.Store, time.Now().UTC())
		return err
	})
	g.Go(func() error {
		var err error
		tasksB, err = e.B.ListTasks()
		if err != nil {
			return err
		}
		changesB, err = changedetect.Detect(e.B.ID(), tasksB, e.Store, time.Now().UTC())
		return err
	})
	if err := g.Wait(); err != nil {
		result.Errors = append(result.Errors, e.wrapError(err, "", ""))
		return e.finish(result, started, false), nil
	}

	changesA = applyFilter(changesA, e.Config.Filter, tasksA)
	changesB = applyFilter(changesB, e.Config.Filter, tasksB)
	result.Stats.ItemsChecked = len(changesA) + len(changesB)

	entries := e.pair(changesA, changesB)

	e.reportProgress(PhaseResolvingConflicts, 25)

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.reportProgress(PhaseSyncing, 50)

	for _, key := range keys {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, SyncError{Kind: ErrCancelled, Message: ctx.Err().Error()})
			return e.finish(result, started, false), nil
		}

		entry := entries[key]
		if err := e.reconcile(entry, result); err != nil {
			se := e.wrapError(err, key, "")
			result.Errors = append(result.Errors, se)
			result.Stats.ItemsSkipped++
			if e.Config.Callbacks.OnError != nil {
				e.Config.Callbacks.OnError(se)
			}
		}
	}

	if e.Config.SyncTags {
		if err := syncTagTaxonomyUnion([]backend.Backend{e.A, e.B}, e.Config.DryRun); err != nil {
			result.Errors = append(result.Errors, e.wrapError(err, "", ""))
		}
	}
	if e.Config.SyncSections {
		if err := syncSectionTaxonomyUnion([]backend.Backend{e.A, e.B}, e.Config.DryRun); err != nil {
			result.Errors = append(result.Errors, e.wrapError(err, "", ""))
		}
	}

	e.reportProgress(PhaseFinalizing, 100)
	return e.finish(result, started, len(result.Errors) == 0), nil
}

func (e *TwoWay) pair(changesA, changesB []changedetect.ItemChange) map[string]*pairEntry {
	entries := make(map[string]*pairEntry)

	for i := range changesA {
		c := changesA[i]
		item, _ := e.Store.FindSyncItemByBackendID(e.A.ID(), c.ItemID)
		key := c.ItemID
		if item != nil {
			key = item.SyncID
		}
		entry, ok := entries[key]
		if !ok {
			entry = &pairEntry{}
			entries[key] = entry
		}
		if item != nil {
			entry.syncItem = item
		}
		entry.changeA = &c
	}

	for i := range changesB {
		c := changesB[i]
		item, _ := e.Store.FindSyncItemByBackendID(e.B.ID(), c.ItemID)
		key := c.ItemID
		if item != nil {
			key = item.SyncID
		} else if c.NewValues != nil {
			hashB, _ := changedetect.ContentHash(*c.NewValues)
			for _, a := range changesA {
				en := entries[a.ItemID]
				if en == nil || en.syncItem != nil || en.changeB != nil || a.NewValues == nil {
					continue
				}
				if hashA, _ := changedetect.ContentHash(*a.NewValues); hashA == hashB {
					key = a.ItemID
					break
				}
			}
		}
		entry, ok := entries[key]
		if !ok {
			entry = &pairEntry{}
			entries[key] = entry
		}
		if item != nil {
			entry.syncItem = item
		}
		entry.changeB = &c
	}

	return entries
}

func (e *TwoWay) reconcile(entry *pairEntry, result *Result) error {
	switch {
	case entry.changeA != nil && entry.changeB == nil:
		return propagate(e.A, e.B, e.Store, *entry.changeA, e.Config.DryRun, &result.Stats)
	case entry.changeB != nil && entry.changeA == nil:
		return propagate(e.B, e.A, e.Store, *entry.changeB, e.Config.DryRun, &result.Stats)
	case entry.changeA.ChangeType == changedetect.Deleted && entry.changeB.ChangeType == changedetect.Deleted:
		return e.reconcileBothDeletes(entry, result)
	case entry.changeA.ChangeType == changedetect.Deleted || entry.changeB.ChangeType == changedetect.Deleted:
		return e.reconcileDeleteVersusUpdate(entry, result)
	default:
		return e.reconcileBothUpdates(entry, result)
	}
}

func (e *TwoWay) reconcileBothDeletes(entry *pairEntry, result *Result) error {
	if entry.syncItem == nil {
		return nil
	}
	if !e.Config.DryRun {
		if err := e.Store.DeleteSyncItem(entry.syncItem.SyncID); err != nil {
			return err
		}
	}
	result.Stats.ItemsDeleted++
	return nil
}

func (e *TwoWay) reconcileDeleteVersusUpdate(entry *pairEntry, result *Result) error {
	var deleteChange, updateChange *changedetect.ItemChange
	if entry.changeA.ChangeType == changedetect.Deleted {
		deleteChange, updateChange = entry.changeA, entry.changeB
	} else {
		deleteChange, updateChange = entry.changeB, entry.changeA
	}

	deletingBackend, preservingBackend := e.A, e.B
	if deleteChange.SourceBackend == e.B.ID() {
		deletingBackend, preservingBackend = e.B, e.A
	}

	if e.Config.ConflictStrategy == conflict.SourceWins {
		if entry.syncItem == nil {
			return nil
		}
		if e.Config.DryRun {
			result.Stats.ItemsDeleted++
			return nil
		}
		preservingGid := entry.syncItem.BackendIDs[preservingBackend.ID()]
		if err := preservingBackend.DeleteTask(preservingGid); err != nil {
			return err
		}
		if err := e.Store.DeleteSyncItem(entry.syncItem.SyncID); err != nil {
			return err
		}
		result.Stats.ItemsDeleted++
		return nil
	}

	// Any other strategy prefers updates: re-populate the deleted side
	// from the preserved record.
	if e.Config.DryRun {
		result.Stats.ItemsCreated++
		return nil
	}

	task := updateChange.NewValues
	recreated, err := deletingBackend.CreateTask(backend.TaskInput{
		Name:        task.Name,
		Notes:       task.Notes,
		DueOn:       task.DueOn,
		Priority:    task.Priority,
		IsMilestone: task.IsMilestone,
	})
	if err != nil {
		return err
	}

	hash, err := changedetect.ContentHash(*task)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if entry.syncItem != nil {
		_, err = e.Store.UpdateSyncItem(entry.syncItem.SyncID, syncstate.ItemPartial{
			BackendIDs:    map[string]string{deletingBackend.ID(): recreated.Gid},
			Versions:      map[string]string{deletingBackend.ID(): hash, preservingBackend.ID(): hash},
			LastSyncTimes: map[string]time.Time{deletingBackend.ID(): now, preservingBackend.ID(): now},
		})
	} else {
		_, err = e.Store.CreateSyncItem(
			map[string]string{deletingBackend.ID(): recreated.Gid, preservingBackend.ID(): task.Gid},
			map[string]string{deletingBackend.ID(): hash, preservingBackend.ID(): hash},
		)
	}
	if err != nil {
		return err
	}

	result.Stats.ItemsCreated++
	return nil
}

func (e *TwoWay) reconcileBothUpdates(entry *pairEntry, result *Result) error {
	if entry.syncItem == nil {
		// No prior binding: adopt both sides under a single new SyncItem
		// if they agree, else source (A) wins.
		return e.adoptUnbound(entry, result)
	}

	taskA, taskB := *entry.changeA.NewValues, *entry.changeB.NewValues
	diffs := changedetect.DetectFieldChanges(taskA, taskB)

	now := time.Now().UTC()
	valuesA := taskToValues(taskA)
	valuesB := taskToValues(taskB)
	merged := make(map[string]interface{}, len(valuesA))

	for field, v := range valuesA {
		merged[field] = v
	}

	for _, d := range diffs {
		values := map[string]interface{}{e.A.ID(): valuesA[d.Field], e.B.ID(): valuesB[d.Field]}
		order := []string{e.A.ID(), e.B.ID()}
		c := conflict.DetectConflicts(d.Field, values, order, now)
		if c == nil {
			continue
		}
		resolved, err := conflict.Resolve(*c, e.Config.ConflictStrategy, e.Config.Callbacks.OnConflict, now)
		if err != nil {
			return err
		}
		merged[d.Field] = resolved.Resolution.ChosenValue
		result.Conflicts = append(result.Conflicts, resolved)
		result.Stats.ConflictsDetected++
		result.Stats.ConflictsResolved++
	}

	mergedTask := applyValuesToTask(taskA, merged)
	hash, err := changedetect.ContentHash(mergedTask)
	if err != nil {
		return err
	}

	if !e.Config.DryRun {
		partial := valuesToPartial(merged)
		if _, err := e.A.UpdateTask(entry.syncItem.BackendIDs[e.A.ID()], partial); err != nil {
			return err
		}
		if _, err := e.B.UpdateTask(entry.syncItem.BackendIDs[e.B.ID()], partial); err != nil {
			return err
		}

		noConflicts := false
		_, err = e.Store.UpdateSyncItem(entry.syncItem.SyncID, syncstate.ItemPartial{
			Versions:      map[string]string{e.A.ID(): hash, e.B.ID(): hash},
			LastSyncTimes: map[string]time.Time{e.A.ID(): now, e.B.ID(): now},
			HasConflicts:  &noConflicts,
		})
		if err != nil {
			return err
		}
	}

	result.Stats.ItemsUpdated++
	return nil
}

// adoptUnbound handles the boundary case (spec.md §8): a task present in
// both backends with no SyncItem yet. If they already hash-equal, bind them
// under one SyncItem; otherwise source (A) wins.
func (e *TwoWay) adoptUnbound(entry *pairEntry, result *Result) error {
	taskA, taskB := *entry.changeA.NewValues, *entry.changeB.NewValues
	hashA, err := changedetect.ContentHash(taskA)
	if err != nil {
		return err
	}
	hashB, err := changedetect.ContentHash(taskB)
	if err != nil {
		return err
	}

	if hashA != hashB && !e.Config.DryRun {
		partial := buildFullPartial(taskA)
		if _, err := e.B.UpdateTask(taskB.Gid, partial); err != nil {
			return err
		}
		hashB = hashA
	}

	if e.Config.DryRun {
		result.Stats.ItemsUpdated++
		return nil
	}

	_, err = e.Store.CreateSyncItem(
		map[string]string{e.A.ID(): taskA.Gid, e.B.ID(): taskB.Gid},
		map[string]string{e.A.ID(): hashA, e.B.ID(): hashB},
	)
	if err != nil {
		return err
	}
	result.Stats.ItemsUpdated++
	return nil
}

func (e *TwoWay) reportProgress(phase Phase, percentage int) {
	if e.Config.Callbacks.OnProgress != nil {
		e.Config.Callbacks.OnProgress(Progress{Phase: phase, Percentage: percentage})
	}
}

func (e *TwoWay) wrapError(err error, itemID, backendID string) SyncError {
	return SyncError{Kind: classifyError(err), Message: err.Error(), ItemID: itemID, Backend: backendID, Cause: err}
}

func (e *TwoWay) finish(result *Result, started time.Time, success bool) *Result {
	completed := time.Now().UTC()
	result.Success = success
	result.CompletedAt = completed
	result.DurationMs = completed.Sub(started).Milliseconds()
	return result
}
