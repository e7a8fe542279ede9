// Package localtasks implements a filesystem-based backend.Backend: tasks
// are stored as markdown files with YAML frontmatter in a flat directory,
// with companion YAML registries for tags and sections. An optional git
// sync mode commits every task create, update and delete and can push/pull
// against a remote,
// letting the directory double as a shared, version-controlled store.
package localtasks

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"gopkg.in/yaml.v3"
)

// Backend implements backend.Backend over a directory of task files.
type Backend struct {
	id      string
	path    string
	gitSync bool
}

// Option configures a Backend at construction time.
type Option func(*Backend)

// WithGitSync enables committing every task create, update and delete to
// the enclosing git
// repository (the parent of path) and the Pull/Push helpers.
func WithGitSync(enabled bool) Option {
	return func(b *Backend) { b.gitSync = enabled }
}

// New returns a Backend rooted at path, identified as id. The directory is
// created if it does not already exist.
func New(id, path string, opts ...Option) (*Backend, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("localtasks: resolve path: %w", err)
	}
	b := &Backend{id: id, path: absPath}
	for _, opt := range opts {
		opt(b)
	}
	if err := os.MkdirAll(b.path, 0o755); err != nil {
		return nil, fmt.Errorf("localtasks: create directory: %w", err)
	}
	return b, nil
}

func (b *Backend) ID() string { return b.id }

func (b *Backend) tagsPath() string     { return filepath.Join(b.path, "tags.yaml") }
func (b *Backend) sectionsPath() string { return filepath.Join(b.path, "sections.yaml") }

func (b *Backend) ListTasks() ([]backend.Task, error) {
	sections, err := b.sectionsByName()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(b.path)
	if err != nil {
		return nil, fmt.Errorf("localtasks: read directory: %w", err)
	}

	var tasks []backend.Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		task, err := readTaskFile(filepath.Join(b.path, entry.Name()), sections)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Gid < tasks[j].Gid })
	return tasks, nil
}

func (b *Backend) GetTask(gid string) (*backend.Task, error) {
	filePath, err := b.findTaskFile(gid)
	if err != nil {
		return nil, err
	}
	sections, err := b.sectionsByName()
	if err != nil {
		return nil, err
	}
	return readTaskFile(filePath, sections)
}

func (b *Backend) CreateTask(input backend.TaskInput) (*backend.Task, error) {
	release, err := acquireWriteLock(b.path, "create")
	if err != nil {
		return nil, err
	}
	defer release()

	gid, err := b.generateGid()
	if err != nil {
		return nil, err
	}

	task := backend.Task{
		Gid:         gid,
		Name:        input.Name,
		Notes:       input.Notes,
		DueOn:       input.DueOn,
		Priority:    input.Priority,
		IsMilestone: input.IsMilestone,
	}

	now := time.Now().UTC()
	filePath := filepath.Join(b.path, generateFilename(gid, task.Name))
	if err := writeTaskFile(filePath, task, now, now); err != nil {
		return nil, err
	}

	if err := b.gitCommit("create", gid); err != nil {
		return nil, err
	}
	return &task, nil
}

func (b *Backend) UpdateTask(gid string, partial backend.TaskPartial) (*backend.Task, error) {
	release, err := acquireWriteLock(b.path, "update")
	if err != nil {
		return nil, err
	}
	defer release()

	filePath, err := b.findTaskFile(gid)
	if err != nil {
		return nil, err
	}
	sections, err := b.sectionsByName()
	if err != nil {
		return nil, err
	}
	task, err := readTaskFile(filePath, sections)
	if err != nil {
		return nil, err
	}

	applyPartial(task, partial)

	renamed := filepath.Join(b.path, generateFilename(gid, task.Name))
	if err := writeTaskFile(renamed, *task, time.Now().UTC(), time.Now().UTC()); err != nil {
		return nil, err
	}
	if renamed != filePath {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("localtasks: remove stale task file: %w", err)
		}
	}

	if err := b.gitCommit("update", gid); err != nil {
		return nil, err
	}
	return task, nil
}

func applyPartial(t *backend.Task, p backend.TaskPartial) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.DueOn != nil {
		t.DueOn = *p.DueOn
	}
	if p.StartOn != nil {
		t.StartOn = *p.StartOn
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.AssigneeGid != nil {
		t.AssigneeGid = *p.AssigneeGid
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.Parent != nil {
		t.Parent = *p.Parent
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.IsMilestone != nil {
		t.IsMilestone = *p.IsMilestone
	}
	if p.Memberships != nil {
		t.Memberships = *p.Memberships
	}
}

func (b *Backend) DeleteTask(gid string) error {
	release, err := acquireWriteLock(b.path, "delete")
	if err != nil {
		return err
	}
	defer release()

	filePath, err := b.findTaskFile(gid)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("localtasks: remove file: %w", err)
	}
	return b.gitCommit("delete", gid)
}

func (b *Backend) findTaskFile(gid string) (string, error) {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		return "", fmt.Errorf("localtasks: read directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".md")
		if base == gid || strings.HasPrefix(base, gid+"-") {
			return filepath.Join(b.path, entry.Name()), nil
		}
	}
	return "", &backend.NotFoundError{Gid: gid}
}

// generateGid issues the next sequential gid by scanning existing filenames,
// mirroring the teacher's zero-padded numeric id scheme.
func (b *Backend) generateGid() (string, error) {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		return "", fmt.Errorf("localtasks: read directory: %w", err)
	}

	max := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".md")
		rest := strings.TrimPrefix(base, b.id+"-")
		if rest == base {
			continue
		}
		parts := strings.SplitN(rest, "-", 2)
		if num, err := strconv.Atoi(parts[0]); err == nil && num > max {
			max = num
		}
	}
	return fmt.Sprintf("%s-%03d", b.id, max+1), nil
}

type tagRegistry struct {
	Tags []backend.Tag `yaml:"tags"`
}

func (b *Backend) ListTags() ([]backend.Tag, error) {
	reg, err := b.loadTagRegistry()
	if err != nil {
		return nil, err
	}
	sort.Slice(reg.Tags, func(i, j int) bool { return reg.Tags[i].Name < reg.Tags[j].Name })
	return reg.Tags, nil
}

func (b *Backend) CreateTag(name string) (*backend.Tag, error) {
	reg, err := b.loadTagRegistry()
	if err != nil {
		return nil, err
	}
	for _, t := range reg.Tags {
		if t.Name == name {
			tag := t
			return &tag, nil
		}
	}
	tag := backend.Tag{Gid: fmt.Sprintf("%s-tag-%d", b.id, len(reg.Tags)+1), Name: name}
	reg.Tags = append(reg.Tags, tag)
	if err := b.saveYAML(b.tagsPath(), reg); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (b *Backend) loadTagRegistry() (*tagRegistry, error) {
	reg := &tagRegistry{}
	if err := b.loadYAML(b.tagsPath(), reg); err != nil {
		return nil, err
	}
	return reg, nil
}

type sectionRegistry struct {
	Sections []backend.Section `yaml:"sections"`
}

func (b *Backend) ListSections() ([]backend.Section, error) {
	reg, err := b.loadSectionRegistry()
	if err != nil {
		return nil, err
	}
	sort.Slice(reg.Sections, func(i, j int) bool { return reg.Sections[i].Name < reg.Sections[j].Name })
	return reg.Sections, nil
}

func (b *Backend) CreateSection(name string) (*backend.Section, error) {
	reg, err := b.loadSectionRegistry()
	if err != nil {
		return nil, err
	}
	for _, s := range reg.Sections {
		if s.Name == name {
			sec := s
			return &sec, nil
		}
	}
	sec := backend.Section{Gid: fmt.Sprintf("%s-section-%d", b.id, len(reg.Sections)+1), Name: name}
	reg.Sections = append(reg.Sections, sec)
	if err := b.saveYAML(b.sectionsPath(), reg); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (b *Backend) loadSectionRegistry() (*sectionRegistry, error) {
	reg := &sectionRegistry{}
	if err := b.loadYAML(b.sectionsPath(), reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (b *Backend) sectionsByName() (map[string]backend.Section, error) {
	reg, err := b.loadSectionRegistry()
	if err != nil {
		return nil, err
	}
	out := make(map[string]backend.Section, len(reg.Sections))
	for _, s := range reg.Sections {
		out[s.Name] = s
	}
	return out, nil
}

func (b *Backend) loadYAML(path string, v interface{}) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("localtasks: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, v); err != nil {
		return fmt.Errorf("localtasks: unmarshal %s: %w", path, err)
	}
	return nil
}

func (b *Backend) saveYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("localtasks: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("localtasks: write %s: %w", path, err)
	}
	return nil
}

// gitCommit stages and commits every change under path if git sync is
// enabled. A commit with nothing staged is not an error.
func (b *Backend) gitCommit(action, gid string) error {
	if !b.gitSync {
		return nil
	}
	gitDir := filepath.Dir(b.path)
	message := fmt.Sprintf("%s: %s", action, gid)

	addCmd := exec.Command("git", "add", b.path)
	addCmd.Dir = gitDir
	if output, err := addCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("localtasks: git add failed: %w\n%s", err, output)
	}

	commitCmd := exec.Command("git", "commit", "-m", message)
	commitCmd.Dir = gitDir
	if output, err := commitCmd.CombinedOutput(); err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("localtasks: git commit failed: %w\n%s", err, output)
	}
	return nil
}

// Pull fetches and rebases onto the remote tracking branch, a no-op if no
// remote is configured. Returns *SyncConflictError if the rebase conflicts.
func (b *Backend) Pull() error {
	gitDir := filepath.Dir(b.path)

	remoteCmd := exec.Command("git", "remote")
	remoteCmd.Dir = gitDir
	remoteOutput, err := remoteCmd.Output()
	if err != nil || strings.TrimSpace(string(remoteOutput)) == "" {
		return nil
	}

	pullCmd := exec.Command("git", "-c", "pull.rebase=true", "pull")
	pullCmd.Dir = gitDir
	output, err := pullCmd.CombinedOutput()
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "conflict") {
			abortCmd := exec.Command("git", "rebase", "--abort")
			abortCmd.Dir = gitDir
			abortCmd.CombinedOutput()
			return &SyncConflictError{Operation: "pull", Message: outputStr}
		}
		if strings.Contains(outputStr, "no tracking information") {
			return nil
		}
		if !strings.Contains(outputStr, "Already up to date") && !strings.Contains(outputStr, "Already up-to-date") {
			return fmt.Errorf("localtasks: git pull failed: %w\n%s", err, outputStr)
		}
	}
	return nil
}

// Push pushes the local commits to the remote tracking branch, a no-op if
// no remote is configured. Returns *PushConflictError on non-fast-forward
// rejection.
func (b *Backend) Push() error {
	gitDir := filepath.Dir(b.path)

	remoteCmd := exec.Command("git", "remote")
	remoteCmd.Dir = gitDir
	remoteOutput, err := remoteCmd.Output()
	if err != nil || strings.TrimSpace(string(remoteOutput)) == "" {
		return nil
	}

	pushCmd := exec.Command("git", "push")
	pushCmd.Dir = gitDir
	output, err := pushCmd.CombinedOutput()
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "rejected") || strings.Contains(outputStr, "non-fast-forward") {
			return &PushConflictError{Message: "push rejected - remote has changes that conflict with local changes"}
		}
		if !strings.Contains(outputStr, "Everything up-to-date") {
			return fmt.Errorf("localtasks: git push failed: %w\n%s", err, outputStr)
		}
	}
	return nil
}

// SyncConflictError reports a git rebase conflict encountered during Pull.
type SyncConflictError struct {
	Operation string
	Message   string
}

func (e *SyncConflictError) Error() string {
	return fmt.Sprintf("git %s conflict: %s", e.Operation, e.Message)
}

// PushConflictError reports a non-fast-forward push rejection.
type PushConflictError struct {
	Message string
}

func (e *PushConflictError) Error() string {
	return fmt.Sprintf("git push conflict: %s", e.Message)
}
