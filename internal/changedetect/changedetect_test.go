package changedetect

import (
	"testing"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/syncstate"
)

func strp(s string) *string { return &s }

func TestContentHashDeterministic(t *testing.T) {
	a := backend.Task{
		Gid:  "1",
		Name: "Write docs",
		Tags: []string{"b", "a"},
	}
	b := backend.Task{
		Gid:  "1",
		Name: "Write docs",
		Tags: []string{"a", "b"},
	}

	hashA, err := ContentHash(a)
	if err != nil {
		t.Fatalf("ContentHash(a) error: %v", err)
	}
	hashB, err := ContentHash(b)
	if err != nil {
		t.Fatalf("ContentHash(b) error: %v", err)
	}
	if hashA != hashB {
		t.Errorf("ContentHash differs for tag-order-only variation: %q != %q", hashA, hashB)
	}
}

func TestContentHashIgnoresGid(t *testing.T) {
	a := backend.Task{Gid: "1", Name: "same"}
	b := backend.Task{Gid: "2", Name: "same"}

	hashA, _ := ContentHash(a)
	hashB, _ := ContentHash(b)
	if hashA != hashB {
		t.Errorf("ContentHash should ignore gid: %q != %q", hashA, hashB)
	}
}

func TestContentHashChangesOnFieldEdit(t *testing.T) {
	a := backend.Task{Gid: "1", Name: "old"}
	b := backend.Task{Gid: "1", Name: "new"}

	hashA, _ := ContentHash(a)
	hashB, _ := ContentHash(b)
	if hashA == hashB {
		t.Error("ContentHash did not change after field edit")
	}
}

func newTestStore(t *testing.T) *syncstate.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := syncstate.Open(dir, []string{"github", "local"})
	if err != nil {
		t.Fatalf("syncstate.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDetectClassifiesCreated(t *testing.T) {
	store := newTestStore(t)
	tasks := []backend.Task{{Gid: "gh-1", Name: "New task"}}

	changes, err := Detect("github", tasks, store, time.Now())
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(changes) != 1 || changes[0].ChangeType != Created {
		t.Fatalf("Detect() = %+v, want one Created change", changes)
	}
	if changes[0].NewValues == nil {
		t.Error("Created change missing NewValues")
	}
}

func TestDetectClassifiesUpdated(t *testing.T) {
	store := newTestStore(t)
	task := backend.Task{Gid: "gh-1", Name: "Original"}
	hash, err := ContentHash(task)
	if err != nil {
		t.Fatalf("ContentHash() error: %v", err)
	}

	_, err = store.CreateSyncItem(
		map[string]string{"github": "gh-1", "local": "loc-1"},
		map[string]string{"github": hash, "local": hash},
	)
	if err != nil {
		t.Fatalf("CreateSyncItem() error: %v", err)
	}

	edited := task
	edited.Name = "Edited"
	changes, err := Detect("github", []backend.Task{edited}, store, time.Now())
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(changes) != 1 || changes[0].ChangeType != Updated {
		t.Fatalf("Detect() = %+v, want one Updated change", changes)
	}
}

func TestDetectClassifiesDeleted(t *testing.T) {
	store := newTestStore(t)
	task := backend.Task{Gid: "gh-1", Name: "Will be deleted"}
	hash, _ := ContentHash(task)

	_, err := store.CreateSyncItem(
		map[string]string{"github": "gh-1", "local": "loc-1"},
		map[string]string{"github": hash, "local": hash},
	)
	if err != nil {
		t.Fatalf("CreateSyncItem() error: %v", err)
	}

	changes, err := Detect("github", nil, store, time.Now())
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(changes) != 1 || changes[0].ChangeType != Deleted {
		t.Fatalf("Detect() = %+v, want one Deleted change", changes)
	}
	if changes[0].NewValues != nil {
		t.Error("Deleted change must not retain NewValues")
	}
}

func TestDetectNoChange(t *testing.T) {
	store := newTestStore(t)
	task := backend.Task{Gid: "gh-1", Name: "Stable"}
	hash, _ := ContentHash(task)

	_, err := store.CreateSyncItem(
		map[string]string{"github": "gh-1", "local": "loc-1"},
		map[string]string{"github": hash, "local": hash},
	)
	if err != nil {
		t.Fatalf("CreateSyncItem() error: %v", err)
	}

	changes, err := Detect("github", []backend.Task{task}, store, time.Now())
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("Detect() = %+v, want no changes", changes)
	}
}

func TestDetectFieldChangesNilEqualsNil(t *testing.T) {
	old := backend.Task{Name: "x"}
	updated := backend.Task{Name: "x"}

	diffs := DetectFieldChanges(old, updated)
	if len(diffs) != 0 {
		t.Fatalf("DetectFieldChanges() = %+v, want no diffs", diffs)
	}
}

func TestDetectFieldChangesDetectsSet(t *testing.T) {
	old := backend.Task{Name: "x"}
	updated := backend.Task{Name: "x", DueOn: strp("2026-08-01")}

	diffs := DetectFieldChanges(old, updated)
	if len(diffs) != 1 || diffs[0].Field != "dueOn" {
		t.Fatalf("DetectFieldChanges() = %+v, want one dueOn diff", diffs)
	}
}

func TestDetectFieldChangesTagOrderInsignificant(t *testing.T) {
	old := backend.Task{Tags: []string{"a", "b"}}
	updated := backend.Task{Tags: []string{"b", "a"}}

	diffs := DetectFieldChanges(old, updated)
	if len(diffs) != 0 {
		t.Fatalf("DetectFieldChanges() = %+v, want tag order to be insignificant", diffs)
	}
}

func TestGroupChangesByType(t *testing.T) {
	changes := []ItemChange{
		{ItemID: "1", ChangeType: Created},
		{ItemID: "2", ChangeType: Updated},
		{ItemID: "3", ChangeType: Created},
	}

	grouped := GroupChangesByType(changes)
	if len(grouped[Created]) != 2 {
		t.Errorf("grouped[Created] has %d entries, want 2", len(grouped[Created]))
	}
	if len(grouped[Updated]) != 1 {
		t.Errorf("grouped[Updated] has %d entries, want 1", len(grouped[Updated]))
	}
}

func TestFilterChangesByTime(t *testing.T) {
	base := time.Now()
	changes := []ItemChange{
		{ItemID: "1", DetectedAt: base.Add(-time.Hour)},
		{ItemID: "2", DetectedAt: base.Add(time.Hour)},
	}

	filtered := FilterChangesByTime(changes, base)
	if len(filtered) != 1 || filtered[0].ItemID != "2" {
		t.Fatalf("FilterChangesByTime() = %+v, want only item 2", filtered)
	}
}
