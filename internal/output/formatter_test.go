package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/conflict"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

func testResult() *syncengine.Result {
	return &syncengine.Result{
		Success:   true,
		Direction: syncengine.TwoWayDirection,
		Backends:  []string{"local-main", "gh-main"},
		Stats: syncengine.Stats{
			ItemsChecked: 10,
			ItemsCreated: 2,
			ItemsUpdated: 3,
		},
		StartedAt:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 1, 1, 9, 0, 1, 0, time.UTC),
		DurationMs:  1000,
	}
}

func testFailedResult() *syncengine.Result {
	r := testResult()
	r.Success = false
	r.Errors = []syncengine.SyncError{
		{Kind: syncengine.ErrConflict, Message: "conflict on field priority", ItemID: "sync-1", Backend: "gh-main"},
	}
	r.Conflicts = []conflict.Conflict{{Field: "priority"}}
	return r
}

func testConfig() *config.Config {
	return &config.Config{
		Version: 1,
		Defaults: config.Defaults{
			Format:   "table",
			SyncPair: "main",
		},
		Workspaces: map[string]config.Workspace{
			"local-main": {Backend: "local", Path: "./.tasksync"},
			"gh-main":    {Backend: "github", Repo: "user/repo"},
		},
		SyncPairs: map[string]config.SyncPair{
			"main": {Workspaces: []string{"local-main", "gh-main"}, Direction: "two-way"},
		},
	}
}

func TestFormatIsValid(t *testing.T) {
	tests := []struct {
		format Format
		valid  bool
	}{
		{FormatTable, true},
		{FormatJSON, true},
		{FormatPlain, true},
		{FormatIDOnly, true},
		{Format("invalid"), false},
		{Format(""), false},
	}

	for _, tt := range tests {
		if got := tt.format.IsValid(); got != tt.valid {
			t.Errorf("Format(%q).IsValid() = %v, want %v", tt.format, got, tt.valid)
		}
	}
}

func TestNewReturnsEachFormatter(t *testing.T) {
	if _, ok := New(FormatJSON).(*JSONFormatter); !ok {
		t.Error("New(FormatJSON) did not return *JSONFormatter")
	}
	if _, ok := New(FormatPlain).(*PlainFormatter); !ok {
		t.Error("New(FormatPlain) did not return *PlainFormatter")
	}
	if _, ok := New(FormatIDOnly).(*IDOnlyFormatter); !ok {
		t.Error("New(FormatIDOnly) did not return *IDOnlyFormatter")
	}
	if _, ok := New(FormatTable).(*TableFormatter); !ok {
		t.Error("New(FormatTable) did not return *TableFormatter")
	}
	if _, ok := New(Format("unknown")).(*TableFormatter); !ok {
		t.Error("New(unknown format) should default to *TableFormatter")
	}
}

func TestTableFormatterFormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.FormatResult(&buf, testResult()); err != nil {
		t.Fatalf("FormatResult() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Sync complete") {
		t.Errorf("output = %q, want it to mention sync completion", out)
	}
	if !strings.Contains(out, "created:   2") {
		t.Errorf("output = %q, want created count", out)
	}
}

func TestTableFormatterFormatResultShowsErrors(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.FormatResult(&buf, testFailedResult()); err != nil {
		t.Fatalf("FormatResult() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Sync failed") {
		t.Errorf("output = %q, want it to mention failure", out)
	}
	if !strings.Contains(out, "conflict on field priority") {
		t.Errorf("output = %q, want the error message", out)
	}
}

func TestTableFormatterFormatBackends(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	statuses := []BackendStatus{
		{Workspace: "local-main", Kind: "local", OK: true, TaskCount: 5},
		{Workspace: "gh-main", Kind: "github", OK: false, Message: "401 unauthorized"},
	}
	if err := f.FormatBackends(&buf, statuses); err != nil {
		t.Fatalf("FormatBackends() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "local-main") || !strings.Contains(out, "401 unauthorized") {
		t.Errorf("output = %q, missing expected rows", out)
	}
}

func TestJSONFormatterFormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}
	if err := f.FormatResult(&buf, testResult()); err != nil {
		t.Fatalf("FormatResult() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"itemsCreated"`) && !strings.Contains(buf.String(), `"ItemsCreated"`) {
		t.Errorf("output = %q, want stats field", buf.String())
	}
}

func TestPlainFormatterFormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := &PlainFormatter{}
	if err := f.FormatResult(&buf, testResult()); err != nil {
		t.Fatalf("FormatResult() error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "true\t10\t2\t3\t0\t0\t0") {
		t.Errorf("output = %q, want tab-separated counters", buf.String())
	}
}

func TestIDOnlyFormatterFormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := &IDOnlyFormatter{}
	if err := f.FormatResult(&buf, testFailedResult()); err != nil {
		t.Fatalf("FormatResult() error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "sync-1" {
		t.Errorf("output = %q, want just the errored item id", buf.String())
	}
}

func TestIDOnlyFormatterFormatResultCleanRun(t *testing.T) {
	var buf bytes.Buffer
	f := &IDOnlyFormatter{}
	if err := f.FormatResult(&buf, testResult()); err != nil {
		t.Fatalf("FormatResult() error: %v", err)
	}
	if buf.String() != "" {
		t.Errorf("output = %q, want empty for a clean run", buf.String())
	}
}

func TestFormatConfigAcrossFormats(t *testing.T) {
	cfg := testConfig()
	for _, format := range ValidFormats() {
		var buf bytes.Buffer
		if err := New(format).FormatConfig(&buf, cfg); err != nil {
			t.Errorf("FormatConfig() with format %q error: %v", format, err)
		}
	}
}
