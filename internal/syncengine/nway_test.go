package syncengine

import (
	"context"
	"testing"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/memorytasks"
)

func TestNWayMaterializesCreateAcrossAllBackends(t *testing.T) {
	a := memorytasks.New("a")
	b := memorytasks.New("b")
	c := memorytasks.New("c")
	store := openEngineStore(t, "a", "b", "c")

	a.Seed(backend.Task{Gid: "a-1", Name: "triage backlog"})

	engine := &NWay{Backends: []backend.Backend{a, b, c}, Store: store}
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

	for _, backendUnderTest := range []*memorytasks.Backend{a, b, c} {
		tasks, _ := backendUnderTest.ListTasks()
		if len(tasks) != 1 || tasks[0].Name != "triage backlog" {
			t.Errorf("%s tasks = %+v, want one task named %q", backendUnderTest.ID(), tasks, "triage backlog")
		}
	}
}

func TestNWayPropagatesUpdateToAllBackends(t *testing.T) {
	a := memorytasks.New("a")
	b := memorytasks.New("b")
	c := memorytasks.New("c")
	store := openEngineStore(t, "a", "b", "c")

	a.Seed(backend.Task{Gid: "a-1", Name: "draft"})

	engine := &NWay{Backends: []backend.Backend{a, b, c}, Store: store}
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("initial Sync() failed: %v", err)
	}

	a.UpdateTask("a-1", backend.TaskPartial{Name: strPtr("final")})

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsUpdated != 1 {
		t.Errorf("ItemsUpdated = %d, want 1", result.Stats.ItemsUpdated)
	}

	for _, backendUnderTest := range []*memorytasks.Backend{a, b, c} {
		tasks, _ := backendUnderTest.ListTasks()
		if len(tasks) != 1 || tasks[0].Name != "final" {
			t.Errorf("%s tasks = %+v, want name %q", backendUnderTest.ID(), tasks, "final")
		}
	}
}

func TestNWayAllDeletesDropsSyncItem(t *testing.T) {
	a := memorytasks.New("a")
	b := memorytasks.New("b")
	c := memorytasks.New("c")
	store := openEngineStore(t, "a", "b", "c")

	a.Seed(backend.Task{Gid: "a-1", Name: "ephemeral"})

	engine := &NWay{Backends: []backend.Backend{a, b, c}, Store: store}
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("initial Sync() failed: %v", err)
	}

	item, err := store.FindSyncItemByBackendID("a", "a-1")
	if err != nil {
		t.Fatalf("FindSyncItemByBackendID() returned unexpected error: %v", err)
	}

	for _, backendUnderTest := range []*memorytasks.Backend{a, b, c} {
		tasks, _ := backendUnderTest.ListTasks()
		backendUnderTest.DeleteTask(tasks[0].Gid)
	}

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsDeleted != 1 {
		t.Errorf("ItemsDeleted = %d, want 1", result.Stats.ItemsDeleted)
	}

	if _, err := store.GetSyncItem(item.SyncID); err == nil {
		t.Errorf("expected SyncItem %q to be gone after all-backend delete", item.SyncID)
	}
}

func TestNWayDryRunMakesNoChanges(t *testing.T) {
	a := memorytasks.New("a")
	b := memorytasks.New("b")
	c := memorytasks.New("c")
	store := openEngineStore(t, "a", "b", "c")

	a.Seed(backend.Task{Gid: "a-1", Name: "draft"})

	engine := &NWay{Backends: []backend.Backend{a, b, c}, Store: store, Config: Config{DryRun: true}}
	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() returned unexpected error: %v", err)
	}
	if result.Stats.ItemsCreated != 1 {
		t.Errorf("ItemsCreated = %d, want 1 (counters still advance under dry-run)", result.Stats.ItemsCreated)
	}

	bTasks, _ := b.ListTasks()
	cTasks, _ := c.ListTasks()
	if len(bTasks) != 0 || len(cTasks) != 0 {
		t.Errorf("b/c have tasks b=%+v c=%+v, want none under dry-run", bTasks, cTasks)
	}
	if len(store.AllItems()) != 0 {
		t.Errorf("store has %d items, want 0 under dry-run", len(store.AllItems()))
	}
}

func TestNWayTaxonomyUnionCreatesMissingTagsEverywhere(t *testing.T) {
	a := memorytasks.New("a")
	b := memorytasks.New("b")
	store := openEngineStore(t, "a", "b")

	a.CreateTag("urgent")
	b.CreateTag("blocked")

	engine := &NWay{Backends: []backend.Backend{a, b}, Store: store, Config: Config{SyncTags: true}}
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() returned unexpected error: %v", err)
	}

	aTags, _ := a.ListTags()
	bTags, _ := b.ListTags()
	if len(aTags) != 2 || len(bTags) != 2 {
		t.Errorf("tag union incomplete: a=%+v b=%+v", aTags, bTags)
	}
}
