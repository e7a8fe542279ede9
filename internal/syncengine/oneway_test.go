package syncengine

import (
	"context"
	"testing"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/memorytasks"
	"github.com/alexbrand/tasksync/internal/syncstate"
)

func openEngineStore(t *testing.T, backendIDs ...string) *syncstate.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := syncstate.Open(dir, backendIDs)
	if err != nil {
		t.Fatalf("syncstate.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOneWayPropagatesCreate(t *testing.T) {
	source := memorytasks.New("source")
	target := memorytasks.New("target")
	store := openEngineStore(t, "source", "target")

	source.Seed(backend.Task{Gid: "source-1", Name: "write design doc"})

	engine := &OneWay{Source: source, Target: target, Store: store}
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() returned unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("Sync() not successful: %+v", result.Errors)
	}
	if result.Stats.ItemsCreated != 1 {
		t.Errorf("ItemsCreated = %d, want 1", result.Stats.ItemsCreated)
	}

	targetTasks, _ := target.ListTasks()
	if len(targetTasks) != 1 || targetTasks[0].Name != "write design doc" {
		t.Fatalf("target tasks = %+v, want one task named %q", targetTasks, "write design doc")
	}

	item, err := store.FindSyncItemByBackendID("source", "source-1")
	if err != nil {
		t.Fatalf("FindSyncItemByBackendID() returned unexpected error: %v", err)
	}
	if _, ok := item.BackendIDs["target"]; !ok {
		t.Errorf("SyncItem missing target backend id")
	}
}

func TestOneWayPropagatesUpdate(t *testing.T) {
	source := memorytasks.New("source")
	target := memorytasks.New("target")
	store := openEngineStore(t, "source", "target")

	source.Seed(backend.Task{Gid: "source-1", Name: "draft"})

	engine := &OneWay{Source: source, Target: target, Store: store}
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("initial Sync() failed: %v", err)
	}

	source.UpdateTask("source-1", backend.TaskPartial{Name: strPtr("final draft")})

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsUpdated != 1 {
		t.Errorf("ItemsUpdated = %d, want 1", result.Stats.ItemsUpdated)
	}

	targetTasks, _ := target.ListTasks()
	if targetTasks[0].Name != "final draft" {
		t.Errorf("target task name = %q, want %q", targetTasks[0].Name, "final draft")
	}
}

func TestOneWayPropagatesDelete(t *testing.T) {
	source := memorytasks.New("source")
	target := memorytasks.New("target")
	store := openEngineStore(t, "source", "target")

	source.Seed(backend.Task{Gid: "source-1", Name: "to be removed"})

	engine := &OneWay{Source: source, Target: target, Store: store}
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("initial Sync() failed: %v", err)
	}

	if err := source.DeleteTask("source-1"); err != nil {
		t.Fatalf("DeleteTask() failed: %v", err)
	}

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsDeleted != 1 {
		t.Errorf("ItemsDeleted = %d, want 1", result.Stats.ItemsDeleted)
	}

	targetTasks, _ := target.ListTasks()
	if len(targetTasks) != 0 {
		t.Errorf("target tasks = %+v, want none", targetTasks)
	}
}

func TestOneWayDryRunMakesNoChanges(t *testing.T) {
	source := memorytasks.New("source")
	target := memorytasks.New("target")
	store := openEngineStore(t, "source", "target")

	source.Seed(backend.Task{Gid: "source-1", Name: "draft"})

	engine := &OneWay{Source: source, Target: target, Store: store, Config: Config{DryRun: true}}
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsCreated != 1 {
		t.Errorf("ItemsCreated = %d, want 1 (counters still advance under dry-run)", result.Stats.ItemsCreated)
	}

	targetTasks, _ := target.ListTasks()
	if len(targetTasks) != 0 {
		t.Errorf("target tasks = %+v, want none under dry-run", targetTasks)
	}
	if len(store.AllItems()) != 0 {
		t.Errorf("store has %d items, want 0 under dry-run", len(store.AllItems()))
	}
}

func TestOneWayIsIdempotent(t *testing.T) {
	source := memorytasks.New("source")
	target := memorytasks.New("target")
	store := openEngineStore(t, "source", "target")

	source.Seed(backend.Task{Gid: "source-1", Name: "draft"})

	engine := &OneWay{Source: source, Target: target, Store: store}
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsCreated != 0 || result.Stats.ItemsUpdated != 0 {
		t.Errorf("second no-op pass reported work: %+v", result.Stats)
	}
}

func TestOneWayRespectsCancellation(t *testing.T) {
	source := memorytasks.New("source")
	target := memorytasks.New("target")
	store := openEngineStore(t, "source", "target")

	source.Seed(backend.Task{Gid: "source-1", Name: "a"})
	source.Seed(backend.Task{Gid: "source-2", Name: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &OneWay{Source: source, Target: target, Store: store}
	result, err := engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() returned unexpected error: %v", err)
	}
	if result.Success {
		t.Errorf("Sync() reported success despite cancellation")
	}
	if len(result.Errors) != 1 || result.Errors[0].Kind != ErrCancelled {
		t.Errorf("Errors = %+v, want one ErrCancelled", result.Errors)
	}
}

func strPtr(s string) *string { return &s }
