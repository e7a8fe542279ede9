package syncengine

import (
	"context"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/changedetect"
	"github.com/alexbrand/tasksync/internal/syncstate"
)

// OneWay reconciles changes detected on Source onto Target, never the
// reverse (spec.md §4.5).
type OneWay struct {
	Source backend.Backend
	Target backend.Backend
	Store  *syncstate.Store
	Config Config
}

// Sync runs one One-Way reconciliation pass.
func (e *OneWay) Sync(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()
	result := &Result{
		Direction: OneWayDirection,
		Backends:  []string{e.Source.ID(), e.Target.ID()},
		StartedAt: started,
	}

	e.reportProgress(PhaseDetectingChanges, 0, 0, 0)

	tasks, err := e.Source.ListTasks()
	if err != nil {
		result.Errors = append(result.Errors, e.wrapError(err, "", e.Source.ID()))
		return e.finish(result, started, false), nil
	}

	changes, err := changedetect.Detect(e.Source.ID(), tasks, e.Store, time.Now().UTC())
	if err != nil {
		result.Errors = append(result.Errors, e.wrapError(err, "", e.Source.ID()))
		return e.finish(result, started, false), nil
	}

	filtered := applyFilter(changes, e.Config.Filter, tasks)
	result.Stats.ItemsChecked = len(changes)

	e.reportProgress(PhaseSyncing, 0, 0, len(filtered))

	for i, change := range filtered {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, SyncError{Kind: ErrCancelled, Message: ctx.Err().Error()})
			return e.finish(result, started, false), nil
		}

		if err := propagate(e.Source, e.Target, e.Store, change, e.Config.DryRun, &result.Stats); err != nil {
			se := e.wrapError(err, change.ItemID, e.Source.ID())
			result.Errors = append(result.Errors, se)
			result.Stats.ItemsSkipped++
			if e.Config.Callbacks.OnError != nil {
				e.Config.Callbacks.OnError(se)
			}
		}

		e.reportProgress(PhaseSyncing, pct(i+1, len(filtered)), i+1, len(filtered))
	}

	if e.Config.SyncTags {
		if err := syncTagTaxonomy(e.Source, e.Target, e.Config.DryRun); err != nil {
			result.Errors = append(result.Errors, e.wrapError(err, "", e.Target.ID()))
		}
	}
	if e.Config.SyncSections {
		if err := syncSectionTaxonomy(e.Source, e.Target, e.Config.DryRun); err != nil {
			result.Errors = append(result.Errors, e.wrapError(err, "", e.Target.ID()))
		}
	}

	e.reportProgress(PhaseFinalizing, 100, len(filtered), len(filtered))
	return e.finish(result, started, len(result.Errors) == 0), nil
}

func (e *OneWay) reportProgress(phase Phase, percentage, done, total int) {
	if e.Config.Callbacks.OnProgress != nil {
		e.Config.Callbacks.OnProgress(Progress{Phase: phase, Percentage: percentage, ItemsDone: done, ItemsTotal: total})
	}
}

func (e *OneWay) wrapError(err error, itemID, backendID string) SyncError {
	return SyncError{Kind: classifyError(err), Message: err.Error(), ItemID: itemID, Backend: backendID, Cause: err}
}

func (e *OneWay) finish(result *Result, started time.Time, success bool) *Result {
	completed := time.Now().UTC()
	result.Success = success
	result.CompletedAt = completed
	result.DurationMs = completed.Sub(started).Milliseconds()
	return result
}

func pct(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
