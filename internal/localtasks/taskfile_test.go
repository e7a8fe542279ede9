package localtasks

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
)

func TestWriteAndReadTaskFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a-001-demo-task.md")

	notes := "some notes"
	dueOn := "2026-08-01"
	priority := backend.PriorityHigh
	task := backend.Task{
		Gid:         "a-001",
		Name:        "demo task",
		Notes:       &notes,
		DueOn:       &dueOn,
		Priority:    &priority,
		Tags:        []string{"urgent", "billing"},
		IsMilestone: true,
		Memberships: []backend.Section{{Gid: "a-section-1", Name: "Backlog"}},
	}

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	if err := writeTaskFile(filePath, task, now, now); err != nil {
		t.Fatalf("writeTaskFile() error: %v", err)
	}

	got, err := readTaskFile(filePath, map[string]backend.Section{"Backlog": {Gid: "a-section-1", Name: "Backlog"}})
	if err != nil {
		t.Fatalf("readTaskFile() error: %v", err)
	}

	if got.Gid != task.Gid || got.Name != task.Name {
		t.Errorf("readTaskFile() gid/name = %q/%q, want %q/%q", got.Gid, got.Name, task.Gid, task.Name)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("readTaskFile().Notes = %v, want %q", got.Notes, notes)
	}
	if got.DueOn == nil || *got.DueOn != dueOn {
		t.Errorf("readTaskFile().DueOn = %v, want %q", got.DueOn, dueOn)
	}
	if got.Priority == nil || *got.Priority != priority {
		t.Errorf("readTaskFile().Priority = %v, want %q", got.Priority, priority)
	}
	if len(got.Tags) != 2 {
		t.Errorf("readTaskFile().Tags = %+v, want 2 tags", got.Tags)
	}
	if !got.IsMilestone {
		t.Error("readTaskFile().IsMilestone = false, want true")
	}
	if len(got.Memberships) != 1 || got.Memberships[0].Gid != "a-section-1" {
		t.Errorf("readTaskFile().Memberships = %+v, want section a-section-1", got.Memberships)
	}
}

func TestReadTaskFileDropsUnresolvedSections(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a-002.md")

	task := backend.Task{Gid: "a-002", Name: "orphaned section ref", Memberships: []backend.Section{{Gid: "x", Name: "Ghost"}}}
	now := time.Now().UTC()
	if err := writeTaskFile(filePath, task, now, now); err != nil {
		t.Fatalf("writeTaskFile() error: %v", err)
	}

	got, err := readTaskFile(filePath, map[string]backend.Section{})
	if err != nil {
		t.Fatalf("readTaskFile() error: %v", err)
	}
	if len(got.Memberships) != 0 {
		t.Errorf("readTaskFile().Memberships = %+v, want none when section registry is empty", got.Memberships)
	}
}

func TestParseFrontmatterRejectsMissingDelimiter(t *testing.T) {
	if _, _, err := parseFrontmatter([]byte("no frontmatter here\n")); err == nil {
		t.Fatal("parseFrontmatter() expected error for missing delimiter")
	}
}

func TestParseFrontmatterRejectsUnclosedBlock(t *testing.T) {
	if _, _, err := parseFrontmatter([]byte("---\ngid: a-1\n")); err == nil {
		t.Fatal("parseFrontmatter() expected error for unclosed frontmatter")
	}
}

func TestGenerateFilenameSlugifiesName(t *testing.T) {
	got := generateFilename("a-001", "Fix the Login Bug!!")
	want := "a-001-fix-the-login-bug.md"
	if got != want {
		t.Errorf("generateFilename() = %q, want %q", got, want)
	}
}

func TestGenerateFilenameFallsBackToGidForEmptyName(t *testing.T) {
	got := generateFilename("a-001", "!!!")
	want := "a-001.md"
	if got != want {
		t.Errorf("generateFilename() = %q, want %q", got, want)
	}
}
