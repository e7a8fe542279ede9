package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/output"
	"github.com/alexbrand/tasksync/internal/syncengine"
	"github.com/alexbrand/tasksync/internal/syncstate"
)

// resolvedPair bundles a named SyncPair with its constructed backends and
// an open Sync-State Store, ready for an engine to run against.
type resolvedPair struct {
	name     string
	pair     config.SyncPair
	backends []backend.Backend
	store    *syncstate.Store
}

// resolveSyncPair looks up the sync pair named name (or the configured
// default when name is empty), constructs every participating backend, and
// opens its Sync-State Store.
func resolveSyncPair(name string) (*resolvedPair, error) {
	sp, resolvedName, err := config.GetSyncPair(name)
	if err != nil {
		return nil, ConfigError(err.Error())
	}
	if len(sp.Workspaces) < 2 {
		return nil, ConfigError(fmt.Sprintf("sync pair %q needs at least two workspaces, has %d", resolvedName, len(sp.Workspaces)))
	}

	backends := make([]backend.Backend, 0, len(sp.Workspaces))
	for _, wsName := range sp.Workspaces {
		ws, err := config.GetWorkspace(wsName)
		if err != nil {
			return nil, ConfigError(err.Error())
		}
		b, err := config.BuildBackend(wsName, *ws)
		if err != nil {
			return nil, WrapError(fmt.Sprintf("connect backend %q", wsName), err)
		}
		backends = append(backends, b)
	}

	statePath, err := config.DefaultStatePath()
	if err != nil {
		return nil, WrapExitCodeError(ExitConfigError, "determine state path", err)
	}
	ids := make([]string, len(backends))
	for i, b := range backends {
		ids[i] = b.ID()
	}
	store, err := syncstate.Open(statePath, ids)
	if err != nil {
		return nil, WrapError("open sync state", err)
	}

	return &resolvedPair{name: resolvedName, pair: *sp, backends: backends, store: store}, nil
}

func (rp *resolvedPair) close() {
	_ = rp.store.Close()
}

// engineConfig translates the resolved pair's config into a syncengine.Config,
// forcing DryRun when dryRun is true (the `status` command's sole difference
// from `sync`) and wiring a progress callback when --verbose is set.
func (rp *resolvedPair) engineConfig(dryRun bool) (syncengine.Config, error) {
	cfg, err := rp.pair.ToEngineConfig()
	if err != nil {
		return syncengine.Config{}, ConfigError(err.Error())
	}
	if dryRun {
		cfg.DryRun = true
	}
	if verbose {
		cfg.Callbacks.OnProgress = func(p syncengine.Progress) {
			fmt.Fprintf(os.Stderr, "%s: %d%% (%d/%d)\n", p.Phase, p.Percentage, p.ItemsDone, p.ItemsTotal)
		}
	}
	return cfg, nil
}

// engine is the common surface OneWay/TwoWay/NWay all implement.
type engine interface {
	Sync(ctx context.Context) (*syncengine.Result, error)
}

// buildEngine picks the reconciliation engine named by cfg.Direction.
func buildEngine(rp *resolvedPair, cfg syncengine.Config) (engine, error) {
	switch cfg.Direction {
	case syncengine.OneWayDirection:
		return &syncengine.OneWay{Source: rp.backends[0], Target: rp.backends[1], Store: rp.store, Config: cfg}, nil
	case syncengine.TwoWayDirection:
		if len(rp.backends) != 2 {
			return nil, ConfigError(fmt.Sprintf("two-way sync pair %q needs exactly two workspaces, has %d", rp.name, len(rp.backends)))
		}
		return &syncengine.TwoWay{A: rp.backends[0], B: rp.backends[1], Store: rp.store, Config: cfg}, nil
	case syncengine.NWayDirection:
		return &syncengine.NWay{Backends: rp.backends, Store: rp.store, Config: cfg}, nil
	default:
		return nil, ConfigError(fmt.Sprintf("unknown direction %q", cfg.Direction))
	}
}

// runEngine runs eng to completion, cancelling on SIGINT/SIGTERM, and
// translates the outcome into an exit-coded error when the run did not
// fully succeed.
func runEngine(eng engine) (*syncengine.Result, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Sync(ctx)
	if err != nil {
		return nil, WrapError("sync run failed", err)
	}
	if !result.Success {
		return result, classifyResultError(result)
	}
	return result, nil
}

// classifyResultError maps a failed Result's errors onto the exit-code
// scheme: a cancellation or conflict anywhere in Errors takes priority over
// a generic failure.
func classifyResultError(result *syncengine.Result) error {
	for _, e := range result.Errors {
		if e.Kind == syncengine.ErrCancelled {
			return CancelledError(e.Message)
		}
	}
	for _, e := range result.Errors {
		if e.Kind == syncengine.ErrConflict {
			return ConflictError(fmt.Sprintf("%d conflict(s) require manual resolution", result.Stats.ConflictsDetected))
		}
	}
	if len(result.Errors) > 0 {
		return WrapError("sync run did not fully succeed", result.Errors[0])
	}
	return NewExitCodeError(ExitError, "sync run did not fully succeed")
}

func printResult(result *syncengine.Result) error {
	formatter := output.New(output.Format(GetFormat()))
	return formatter.FormatResult(os.Stdout, result)
}
