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

// NWay generalizes TwoWay to N >= 2 participating backends (spec.md §4.7):
// each sync-identity is a node, and the per-backend changes on it are
// labeled edges.
type NWay struct {
	Backends []backend.Backend
	Store    *syncstate.Store
	Config   Config
}

// multiBackendChanges collects every backend's change on one sync-identity.
type multiBackendChanges struct {
	syncItem *syncstate.SyncItem
	changes  map[string]changedetect.ItemChange // backendId -> change
}

// Sync runs one N-Way reconciliation pass.
func (e *NWay) Sync(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()
	ids := make([]string, len(e.Backends))
	for i, b := range e.Backends {
		ids[i] = b.ID()
	}
	result := &Result{Direction: NWayDirection, Backends: ids, StartedAt: started}

	e.reportProgress(PhaseDetectingChanges, 0)

	allChanges := make([][]changedetect.ItemChange, len(e.Backends))
	allTasks := make([][]backend.Task, len(e.Backends))

	g, _ := errgroup.WithContext(ctx)
	for i := range e.Backends {
		i := i
		b := e.Backends[i]
		g.Go(func() error {
			tasks, err := b.ListTasks()
			if err != nil {
				return err
			}
			changes, err := changedetect.Detect(b.ID(), tasks, e.Store, time.Now().UTC())
			if err != nil {
				return err
			}
			allTasks[i] = tasks
			allChanges[i] = applyFilter(changes, e.Config.Filter, tasks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Errors = append(result.Errors, e.wrapError(err, "", ""))
		return e.finish(result, started, false), nil
	}

	for _, c := range allChanges {
		result.Stats.ItemsChecked += len(c)
	}

	graph := e.buildChangeGraph(allChanges)

	e.reportProgress(PhaseResolvingConflicts, 25)

	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.reportProgress(PhaseSyncing, 50)

	for _, key := range keys {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, SyncError{Kind: ErrCancelled, Message: ctx.Err().Error()})
			return e.finish(result, started, false), nil
		}

		entry := graph[key]
		if err := e.reconcileEntry(entry, result); err != nil {
			se := e.wrapError(err, key, "")
			result.Errors = append(result.Errors, se)
			result.Stats.ItemsSkipped++
			if e.Config.Callbacks.OnError != nil {
				e.Config.Callbacks.OnError(se)
			}
		}
	}

	if e.Config.SyncTags {
		if err := syncTagTaxonomyUnion(e.Backends, e.Config.DryRun); err != nil {
			result.Errors = append(result.Errors, e.wrapError(err, "", ""))
		}
	}
	if e.Config.SyncSections {
		if err := syncSectionTaxonomyUnion(e.Backends, e.Config.DryRun); err != nil {
			result.Errors = append(result.Errors, e.wrapError(err, "", ""))
		}
	}

	e.reportProgress(PhaseFinalizing, 100)
	return e.finish(result, started, len(result.Errors) == 0), nil
}

// buildChangeGraph groups every backend's changes by sync-identity: key is
// the SyncItem's syncId if one exists, else the gid of the new item (new
// items collide only with themselves).
func (e *NWay) buildChangeGraph(allChanges [][]changedetect.ItemChange) map[string]*multiBackendChanges {
	graph := make(map[string]*multiBackendChanges)

	// backends are walked in lexicographic id order (the Open Question
	// decision, spec.md §9) so insertion-order-dependent resolution below
	// is deterministic rather than dependent on e.Backends' order.
	order := e.backendOrder()

	for _, backendID := range order {
		idx := e.backendIndex(backendID)
		for _, c := range allChanges[idx] {
			item, _ := e.Store.FindSyncItemByBackendID(backendID, c.ItemID)
			key := c.ItemID
			if item != nil {
				key = item.SyncID
			}
			entry, ok := graph[key]
			if !ok {
				entry = &multiBackendChanges{changes: make(map[string]changedetect.ItemChange)}
				graph[key] = entry
			}
			if item != nil {
				entry.syncItem = item
			}
			entry.changes[backendID] = c
		}
	}

	return graph
}

func (e *NWay) backendOrder() []string {
	ids := make([]string, len(e.Backends))
	for i, b := range e.Backends {
		ids[i] = b.ID()
	}
	sort.Strings(ids)
	return ids
}

func (e *NWay) backendIndex(id string) int {
	for i, b := range e.Backends {
		if b.ID() == id {
			return i
		}
	}
	return -1
}

func (e *NWay) backendByID(id string) backend.Backend {
	for _, b := range e.Backends {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

func (e *NWay) reconcileEntry(entry *multiBackendChanges, result *Result) error {
	deletes, updates, creates := e.classify(entry)

	switch {
	case len(deletes) > 0 && len(updates) == 0 && len(creates) == 0:
		return e.reconcileAllDeletes(entry, result)
	case len(deletes) > 0:
		return e.reconcileDeleteVersusUpdate(entry, deletes, updates, creates, result)
	case len(creates) > 0 && len(updates) == 0:
		return e.reconcileAllCreates(entry, creates, result)
	case len(creates) > 0 && len(updates) > 0:
		return e.reconcileMixedCreatesUpdates(entry, updates, creates, result)
	case len(updates) == 1:
		return e.reconcileSingleUpdate(entry, updates, result)
	default:
		return e.reconcileAllUpdates(entry, updates, result)
	}
}

func (e *NWay) classify(entry *multiBackendChanges) (deletes, updates, creates []string) {
	for backendID := range entry.changes {
		switch entry.changes[backendID].ChangeType {
		case changedetect.Deleted:
			deletes = append(deletes, backendID)
		case changedetect.Updated:
			updates = append(updates, backendID)
		case changedetect.Created:
			creates = append(creates, backendID)
		}
	}
	sort.Strings(deletes)
	sort.Strings(updates)
	sort.Strings(creates)
	return
}

// reconcileAllDeletes: delete from every backend known to the SyncItem,
// drop the SyncItem.
func (e *NWay) reconcileAllDeletes(entry *multiBackendChanges, result *Result) error {
	if entry.syncItem == nil {
		return nil
	}
	if !e.Config.DryRun {
		for backendID, gid := range entry.syncItem.BackendIDs {
			if _, changed := entry.changes[backendID]; changed {
				continue
			}
			if err := e.backendByID(backendID).DeleteTask(gid); err != nil {
				return err
			}
		}
		if err := e.Store.DeleteSyncItem(entry.syncItem.SyncID); err != nil {
			return err
		}
	}
	result.Stats.ItemsDeleted++
	return nil
}

// reconcileDeleteVersusUpdate: "continue-versus-erase". source-wins
// respects the first change in backend-id lexicographic order; any other
// strategy prefers updates, re-populating the deleted side(s).
func (e *NWay) reconcileDeleteVersusUpdate(entry *multiBackendChanges, deletes, updates, creates []string, result *Result) error {
	ordered := append(append(append([]string(nil), deletes...), updates...), creates...)
	sort.Strings(ordered)
	if e.Config.ConflictStrategy == conflict.SourceWins && entry.changes[ordered[0]].ChangeType == changedetect.Deleted {
		if entry.syncItem == nil {
			return nil
		}
		if e.Config.DryRun {
			result.Stats.ItemsDeleted++
			return nil
		}
		for backendID, gid := range entry.syncItem.BackendIDs {
			if c, ok := entry.changes[backendID]; ok && c.ChangeType == changedetect.Deleted {
				continue
			}
			if err := e.backendByID(backendID).DeleteTask(gid); err != nil {
				return err
			}
		}
		if err := e.Store.DeleteSyncItem(entry.syncItem.SyncID); err != nil {
			return err
		}
		result.Stats.ItemsDeleted++
		return nil
	}

	// Prefer updates: use the first updated backend's record as the
	// reference, re-create it on every deleted backend.
	referenceBackend := append(append([]string(nil), updates...), creates...)[0]
	refChange := entry.changes[referenceBackend]
	task := refChange.NewValues

	if e.Config.DryRun {
		result.Stats.ItemsCreated += len(deletes)
		return nil
	}

	backendIDs := map[string]string{}
	versions := map[string]string{}
	if entry.syncItem != nil {
		for b, g := range entry.syncItem.BackendIDs {
			backendIDs[b] = g
		}
	}
	hash, err := changedetect.ContentHash(*task)
	if err != nil {
		return err
	}
	for backendID := range entry.changes {
		versions[backendID] = hash
	}

	for _, backendID := range deletes {
		recreated, err := e.backendByID(backendID).CreateTask(backend.TaskInput{
			Name:        task.Name,
			Notes:       task.Notes,
			DueOn:       task.DueOn,
			Priority:    task.Priority,
			IsMilestone: task.IsMilestone,
		})
		if err != nil {
			return err
		}
		backendIDs[backendID] = recreated.Gid
	}

	now := time.Now().UTC()
	lastSync := make(map[string]time.Time, len(backendIDs))
	for b := range backendIDs {
		lastSync[b] = now
	}

	if entry.syncItem != nil {
		_, err = e.Store.UpdateSyncItem(entry.syncItem.SyncID, syncstate.ItemPartial{
			BackendIDs:    backendIDs,
			Versions:      versions,
			LastSyncTimes: lastSync,
		})
	} else {
		_, err = e.Store.CreateSyncItem(backendIDs, versions)
	}
	if err != nil {
		return err
	}

	result.Stats.ItemsCreated += len(deletes)
	return nil
}

// reconcileAllCreates: pick the first create (lexicographic backend order)
// as the source record, create it in every backend not already present,
// register a single SyncItem.
func (e *NWay) reconcileAllCreates(entry *multiBackendChanges, creates []string, result *Result) error {
	return e.materializeAcrossMissing(entry, creates[0], result)
}

// reconcileMixedCreatesUpdates: same materialization path as all-creates,
// with an updated backend treated as the reference when one exists.
func (e *NWay) reconcileMixedCreatesUpdates(entry *multiBackendChanges, updates, creates []string, result *Result) error {
	reference := updates[0]
	return e.materializeAcrossMissing(entry, reference, result)
}

// reconcileSingleUpdate handles the common case where exactly one backend
// reports an update and every other backend is quiet: there is nothing to
// reconcile between competing values, so the single change is pushed
// straight to every other backend bound in the SyncItem (spec.md §4.7 step
// 3's degenerate one-changed-side case, the N-way analogue of
// propagateUpdate). If no SyncItem is bound yet, it degrades to the same
// materialization path as a fresh create.
func (e *NWay) reconcileSingleUpdate(entry *multiBackendChanges, updates []string, result *Result) error {
	changeBackend := updates[0]
	change := entry.changes[changeBackend]

	if entry.syncItem == nil {
		return e.materializeAcrossMissing(entry, changeBackend, result)
	}

	if e.Config.DryRun {
		result.Stats.ItemsUpdated++
		return nil
	}

	partial := buildFullPartial(*change.NewValues)
	hash, err := changedetect.ContentHash(*change.NewValues)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	versions := make(map[string]string, len(entry.syncItem.BackendIDs))
	lastSync := make(map[string]time.Time, len(entry.syncItem.BackendIDs))
	for backendID, gid := range entry.syncItem.BackendIDs {
		versions[backendID] = hash
		lastSync[backendID] = now
		if backendID == changeBackend {
			continue
		}
		if _, err := e.backendByID(backendID).UpdateTask(gid, partial); err != nil {
			return err
		}
	}

	if _, err := e.Store.UpdateSyncItem(entry.syncItem.SyncID, syncstate.ItemPartial{
		Versions:      versions,
		LastSyncTimes: lastSync,
	}); err != nil {
		return err
	}

	result.Stats.ItemsUpdated++
	return nil
}

func (e *NWay) materializeAcrossMissing(entry *multiBackendChanges, referenceBackend string, result *Result) error {
	task := entry.changes[referenceBackend].NewValues

	if e.Config.DryRun {
		result.Stats.ItemsCreated++
		return nil
	}

	backendIDs := map[string]string{referenceBackend: task.Gid}
	if entry.syncItem != nil {
		for b, g := range entry.syncItem.BackendIDs {
			backendIDs[b] = g
		}
	}

	for _, b := range e.Backends {
		if _, present := backendIDs[b.ID()]; present {
			continue
		}
		if _, present := entry.changes[b.ID()]; present && b.ID() != referenceBackend {
			// Backend already has its own change for this identity;
			// all-creates/mixed classification means it is itself a
			// create, so its own gid becomes its slot instead of a
			// fresh one.
			backendIDs[b.ID()] = entry.changes[b.ID()].ItemID
			continue
		}
		created, err := b.CreateTask(backend.TaskInput{
			Name:        task.Name,
			Notes:       task.Notes,
			DueOn:       task.DueOn,
			Priority:    task.Priority,
			IsMilestone: task.IsMilestone,
		})
		if err != nil {
			return err
		}
		backendIDs[b.ID()] = created.Gid
	}

	hash, err := changedetect.ContentHash(*task)
	if err != nil {
		return err
	}
	versions := make(map[string]string, len(backendIDs))
	for b := range backendIDs {
		versions[b] = hash
	}

	if entry.syncItem != nil {
		now := time.Now().UTC()
		lastSync := make(map[string]time.Time, len(backendIDs))
		for b := range backendIDs {
			lastSync[b] = now
		}
		_, err = e.Store.UpdateSyncItem(entry.syncItem.SyncID, syncstate.ItemPartial{
			BackendIDs:    backendIDs,
			Versions:      versions,
			LastSyncTimes: lastSync,
		})
	} else {
		_, err = e.Store.CreateSyncItem(backendIDs, versions)
	}
	if err != nil {
		return err
	}

	result.Stats.ItemsCreated++
	return nil
}

// reconcileAllUpdates: collect the post-change Task value from every
// participating backend, resolve conflicts over the union of changed
// fields, write the reconciled record to every known backend.
func (e *NWay) reconcileAllUpdates(entry *multiBackendChanges, updates []string, result *Result) error {
	if entry.syncItem == nil || len(updates) < 2 {
		return nil
	}

	now := time.Now().UTC()
	valuesByBackend := make(map[string]map[string]interface{}, len(updates))
	for _, b := range updates {
		valuesByBackend[b] = taskToValues(*entry.changes[b].NewValues)
	}

	changedFields := make(map[string]bool)
	for i := 0; i < len(updates); i++ {
		for j := i + 1; j < len(updates); j++ {
			taskI := *entry.changes[updates[i]].NewValues
			taskJ := *entry.changes[updates[j]].NewValues
			for _, d := range changedetect.DetectFieldChanges(taskI, taskJ) {
				changedFields[d.Field] = true
			}
		}
	}

	merged := make(map[string]interface{})
	for field := range valuesByBackend[updates[0]] {
		merged[field] = valuesByBackend[updates[0]][field]
	}

	for field := range changedFields {
		values := make(map[string]interface{}, len(updates))
		for _, b := range updates {
			values[b] = valuesByBackend[b][field]
		}
		c := conflict.DetectConflicts(field, values, updates, now)
		if c == nil {
			continue
		}
		resolved, err := conflict.Resolve(*c, e.Config.ConflictStrategy, e.Config.Callbacks.OnConflict, now)
		if err != nil {
			return err
		}
		merged[field] = resolved.Resolution.ChosenValue
		result.Conflicts = append(result.Conflicts, resolved)
		result.Stats.ConflictsDetected++
		result.Stats.ConflictsResolved++
	}

	baseTask := *entry.changes[updates[0]].NewValues
	mergedTask := applyValuesToTask(baseTask, merged)
	hash, err := changedetect.ContentHash(mergedTask)
	if err != nil {
		return err
	}

	if !e.Config.DryRun {
		partial := valuesToPartial(merged)
		for backendID, gid := range entry.syncItem.BackendIDs {
			if _, err := e.backendByID(backendID).UpdateTask(gid, partial); err != nil {
				return err
			}
		}

		versions := make(map[string]string, len(entry.syncItem.BackendIDs))
		lastSync := make(map[string]time.Time, len(entry.syncItem.BackendIDs))
		for backendID := range entry.syncItem.BackendIDs {
			versions[backendID] = hash
			lastSync[backendID] = now
		}
		noConflicts := false
		_, err = e.Store.UpdateSyncItem(entry.syncItem.SyncID, syncstate.ItemPartial{
			Versions:      versions,
			LastSyncTimes: lastSync,
			HasConflicts:  &noConflicts,
		})
		if err != nil {
			return err
		}
	}

	result.Stats.ItemsUpdated++
	return nil
}

func (e *NWay) reportProgress(phase Phase, percentage int) {
	if e.Config.Callbacks.OnProgress != nil {
		e.Config.Callbacks.OnProgress(Progress{Phase: phase, Percentage: percentage})
	}
}

func (e *NWay) wrapError(err error, itemID, backendID string) SyncError {
	return SyncError{Kind: classifyError(err), Message: err.Error(), ItemID: itemID, Backend: backendID, Cause: err}
}

func (e *NWay) finish(result *Result, started time.Time, success bool) *Result {
	completed := time.Now().UTC()
	result.Success = success
	result.CompletedAt = completed
	result.DurationMs = completed.Sub(started).Milliseconds()
	return result
}
