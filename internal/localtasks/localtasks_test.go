package localtasks

import (
	"path/filepath"
	"testing"

	"github.com/alexbrand/tasksync/internal/backend"
)

func TestCreateAndGetTask(t *testing.T) {
	b, err := New("local", t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	created, err := b.CreateTask(backend.TaskInput{Name: "Write design doc"})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if created.Gid == "" {
		t.Fatal("CreateTask() returned empty gid")
	}

	got, err := b.GetTask(created.Gid)
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if got.Name != "Write design doc" {
		t.Errorf("GetTask().Name = %q, want %q", got.Name, "Write design doc")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	b, _ := New("local", t.TempDir())
	if _, err := b.GetTask("missing"); err == nil {
		t.Fatal("GetTask() expected error for unknown gid")
	}
}

func TestUpdateTaskRenamesFile(t *testing.T) {
	dir := t.TempDir()
	b, _ := New("local", dir)

	created, _ := b.CreateTask(backend.TaskInput{Name: "Original name"})

	newName := "Renamed task"
	updated, err := b.UpdateTask(created.Gid, backend.TaskPartial{Name: &newName})
	if err != nil {
		t.Fatalf("UpdateTask() error: %v", err)
	}
	if updated.Name != "Renamed task" {
		t.Errorf("UpdateTask().Name = %q, want %q", updated.Name, "Renamed task")
	}

	got, err := b.GetTask(created.Gid)
	if err != nil {
		t.Fatalf("GetTask() after rename error: %v", err)
	}
	if got.Name != "Renamed task" {
		t.Errorf("GetTask() after rename = %q, want %q", got.Name, "Renamed task")
	}

	matches, _ := filepath.Glob(filepath.Join(dir, created.Gid+"-*.md"))
	if len(matches) != 1 {
		t.Errorf("found %d files for %s after rename, want 1", len(matches), created.Gid)
	}
}

func TestUpdateTaskPartialFieldsOnly(t *testing.T) {
	b, _ := New("local", t.TempDir())
	created, _ := b.CreateTask(backend.TaskInput{Name: "Keep me"})

	completed := true
	updated, err := b.UpdateTask(created.Gid, backend.TaskPartial{Completed: &completed})
	if err != nil {
		t.Fatalf("UpdateTask() error: %v", err)
	}
	if updated.Name != "Keep me" {
		t.Errorf("UpdateTask() changed Name to %q, want unchanged %q", updated.Name, "Keep me")
	}
	if !updated.Completed {
		t.Error("UpdateTask() did not set Completed")
	}
}

func TestDeleteTask(t *testing.T) {
	b, _ := New("local", t.TempDir())
	created, _ := b.CreateTask(backend.TaskInput{Name: "Temporary"})

	if err := b.DeleteTask(created.Gid); err != nil {
		t.Fatalf("DeleteTask() error: %v", err)
	}
	if _, err := b.GetTask(created.Gid); err == nil {
		t.Error("GetTask() succeeded after delete")
	}
}

func TestListTasksSortedByGid(t *testing.T) {
	b, _ := New("local", t.TempDir())
	_, _ = b.CreateTask(backend.TaskInput{Name: "first"})
	_, _ = b.CreateTask(backend.TaskInput{Name: "second"})
	_, _ = b.CreateTask(backend.TaskInput{Name: "third"})

	tasks, err := b.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("ListTasks() returned %d tasks, want 3", len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i-1].Gid > tasks[i].Gid {
			t.Errorf("ListTasks() not sorted: %q before %q", tasks[i-1].Gid, tasks[i].Gid)
		}
	}
}

func TestCreateTagDeduplicates(t *testing.T) {
	b, _ := New("local", t.TempDir())

	first, err := b.CreateTag("urgent")
	if err != nil {
		t.Fatalf("CreateTag() error: %v", err)
	}
	second, err := b.CreateTag("urgent")
	if err != nil {
		t.Fatalf("CreateTag() second call error: %v", err)
	}
	if first.Gid != second.Gid {
		t.Errorf("CreateTag() issued distinct gids %q and %q for same name", first.Gid, second.Gid)
	}

	tags, err := b.ListTags()
	if err != nil {
		t.Fatalf("ListTags() error: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("ListTags() = %+v, want one tag", tags)
	}
}

func TestCreateSectionAndAssignMembership(t *testing.T) {
	b, _ := New("local", t.TempDir())

	section, err := b.CreateSection("Backlog")
	if err != nil {
		t.Fatalf("CreateSection() error: %v", err)
	}

	created, _ := b.CreateTask(backend.TaskInput{Name: "Needs triage"})
	memberships := []backend.Section{*section}
	updated, err := b.UpdateTask(created.Gid, backend.TaskPartial{Memberships: &memberships})
	if err != nil {
		t.Fatalf("UpdateTask() error: %v", err)
	}
	if len(updated.Memberships) != 1 || updated.Memberships[0].Name != "Backlog" {
		t.Errorf("UpdateTask().Memberships = %+v, want [Backlog]", updated.Memberships)
	}

	got, err := b.GetTask(created.Gid)
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if len(got.Memberships) != 1 || got.Memberships[0].Gid != section.Gid {
		t.Errorf("GetTask().Memberships = %+v, want section gid %q", got.Memberships, section.Gid)
	}
}

func TestIDReturnsConfiguredIdentifier(t *testing.T) {
	b, _ := New("work-laptop", t.TempDir())
	if b.ID() != "work-laptop" {
		t.Errorf("ID() = %q, want %q", b.ID(), "work-laptop")
	}
}
