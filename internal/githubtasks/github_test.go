package githubtasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alexbrand/tasksync/internal/backend"
	gh "github.com/google/go-github/v60/github"
)

// mockGitHubServer creates a test server that responds to GitHub REST API
// calls, following the same request/response shape the real client expects.
func mockGitHubServer(t *testing.T, handler func(method, path string) (int, any)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statusCode, resp := handler(r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if resp != nil {
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				t.Errorf("failed to encode response: %v", err)
			}
		}
	}))
}

func newTestBackend(t *testing.T, server *httptest.Server) *Backend {
	b := &Backend{id: "gh", client: gh.NewClient(nil), owner: "acme", repo: "widgets"}
	baseURL, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	b.client.BaseURL = baseURL
	return b
}

func TestNewRejectsMalformedRepo(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "test-token")
	if _, err := New("gh", "not-a-slug"); err == nil {
		t.Fatal("New() expected error for repo without owner/repo slash")
	}
}

func TestNewHonorsGitHubAPIURLOverride(t *testing.T) {
	server := mockGitHubServer(t, func(method, path string) (int, any) {
		return http.StatusOK, []any{}
	})
	defer server.Close()

	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_API_URL", server.URL)

	b, err := New("gh", "acme/widgets")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if b.client.BaseURL.String() != server.URL+"/" {
		t.Errorf("client.BaseURL = %q, want %q", b.client.BaseURL.String(), server.URL+"/")
	}

	if _, err := b.ListTasks(); err != nil {
		t.Fatalf("ListTasks() against overridden base URL error: %v", err)
	}
}

func TestIssueToTaskStripsSyntheticLabelsIntoFields(t *testing.T) {
	b := &Backend{id: "gh"}
	issue := &gh.Issue{
		Number: gh.Int(42),
		Title:  gh.String("Ship the release"),
		State:  gh.String("open"),
		Body:   gh.String("some notes"),
		Labels: []*gh.Label{
			{Name: gh.String("priority:high")},
			{Name: gh.String("milestone")},
			{Name: gh.String("due:2026-08-01")},
			{Name: gh.String("start:2026-07-15")},
			{Name: gh.String("parent:GH-10")},
			{Name: gh.String("depends:GH-11")},
			{Name: gh.String("blocks:GH-12")},
			{Name: gh.String("frontend")},
		},
	}

	task, err := b.issueToTask(issue)
	if err != nil {
		t.Fatalf("issueToTask() error: %v", err)
	}

	if task.Gid != "GH-42" {
		t.Errorf("Gid = %q, want GH-42", task.Gid)
	}
	if task.Priority == nil || *task.Priority != backend.PriorityHigh {
		t.Errorf("Priority = %v, want high", task.Priority)
	}
	if !task.IsMilestone {
		t.Error("IsMilestone = false, want true")
	}
	if task.DueOn == nil || *task.DueOn != "2026-08-01" {
		t.Errorf("DueOn = %v, want 2026-08-01", task.DueOn)
	}
	if task.StartOn == nil || *task.StartOn != "2026-07-15" {
		t.Errorf("StartOn = %v, want 2026-07-15", task.StartOn)
	}
	if task.Parent == nil || *task.Parent != "GH-10" {
		t.Errorf("Parent = %v, want GH-10", task.Parent)
	}
	if len(task.Dependencies) != 1 || task.Dependencies[0] != "GH-11" {
		t.Errorf("Dependencies = %+v, want [GH-11]", task.Dependencies)
	}
	if len(task.Dependents) != 1 || task.Dependents[0] != "GH-12" {
		t.Errorf("Dependents = %+v, want [GH-12]", task.Dependents)
	}
	if len(task.Tags) != 1 || task.Tags[0] != "frontend" {
		t.Errorf("Tags = %+v, want [frontend], synthetic labels must not leak", task.Tags)
	}
}

func TestIssueToTaskMapsMilestoneToMembership(t *testing.T) {
	b := &Backend{id: "gh"}
	issue := &gh.Issue{
		Number:    gh.Int(7),
		Title:     gh.String("Write changelog"),
		State:     gh.String("closed"),
		Milestone: &gh.Milestone{Number: gh.Int(3), Title: gh.String("v1.0")},
	}

	task, err := b.issueToTask(issue)
	if err != nil {
		t.Fatalf("issueToTask() error: %v", err)
	}
	if !task.Completed {
		t.Error("Completed = false for closed issue, want true")
	}
	if len(task.Memberships) != 1 || task.Memberships[0].Name != "v1.0" {
		t.Errorf("Memberships = %+v, want [v1.0]", task.Memberships)
	}
}

func TestIssueToTaskCapturesAssignee(t *testing.T) {
	b := &Backend{id: "gh"}
	issue := &gh.Issue{
		Number:    gh.Int(9),
		Title:     gh.String("Fix bug"),
		State:     gh.String("open"),
		Assignees: []*gh.User{{Login: gh.String("octocat"), ID: gh.Int64(1001)}},
	}

	task, err := b.issueToTask(issue)
	if err != nil {
		t.Fatalf("issueToTask() error: %v", err)
	}
	if task.Assignee == nil || *task.Assignee != "octocat" {
		t.Errorf("Assignee = %v, want octocat", task.Assignee)
	}
	if task.AssigneeGid == nil || *task.AssigneeGid != "1001" {
		t.Errorf("AssigneeGid = %v, want 1001", task.AssigneeGid)
	}
}

func TestParseIssueNumberAcceptsGidForm(t *testing.T) {
	num, err := parseIssueNumber("GH-123")
	if err != nil {
		t.Fatalf("parseIssueNumber() error: %v", err)
	}
	if num != 123 {
		t.Errorf("parseIssueNumber() = %d, want 123", num)
	}
}

func TestParseIssueNumberRejectsGarbage(t *testing.T) {
	if _, err := parseIssueNumber("not-a-number"); err == nil {
		t.Fatal("parseIssueNumber() expected error for non-numeric gid")
	}
}

func TestIsSyntheticLabel(t *testing.T) {
	synthetic := []string{"priority:high", "milestone", "due:2026-01-01", "parent:GH-1", "depends:GH-2", "blocks:GH-3"}
	for _, l := range synthetic {
		if !isSyntheticLabel(l) {
			t.Errorf("isSyntheticLabel(%q) = false, want true", l)
		}
	}
	if isSyntheticLabel("frontend") {
		t.Error("isSyntheticLabel(\"frontend\") = true, want false")
	}
}

func TestListTasksSkipsPullRequests(t *testing.T) {
	server := mockGitHubServer(t, func(method, path string) (int, any) {
		if method == "GET" && strings.Contains(path, "/issues") {
			return http.StatusOK, []map[string]any{
				{"number": 1, "title": "a real issue", "state": "open"},
				{"number": 2, "title": "a PR", "state": "open", "pull_request": map[string]any{"url": "x"}},
			}
		}
		return http.StatusNotFound, nil
	})
	defer server.Close()

	b := newTestBackend(t, server)
	tasks, err := b.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "a real issue" {
		t.Errorf("ListTasks() = %+v, want one non-PR issue", tasks)
	}
}

func TestCreateTaskEncodesPriorityAndMilestoneAsLabels(t *testing.T) {
	server := mockGitHubServer(t, func(method, path string) (int, any) {
		if method == "POST" && strings.Contains(path, "/issues") {
			return http.StatusCreated, map[string]any{
				"number": 55,
				"title":  "new task",
				"state":  "open",
				"labels": []map[string]any{{"name": "priority:high"}, {"name": "milestone"}},
			}
		}
		return http.StatusNotFound, nil
	})
	defer server.Close()

	b := newTestBackend(t, server)
	priority := backend.PriorityHigh
	created, err := b.CreateTask(backend.TaskInput{Name: "new task", Priority: &priority, IsMilestone: true})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if created.Priority == nil || *created.Priority != backend.PriorityHigh {
		t.Errorf("CreateTask().Priority = %v, want high", created.Priority)
	}
	if !created.IsMilestone {
		t.Error("CreateTask().IsMilestone = false, want true")
	}
}
