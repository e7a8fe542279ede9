package localtasks

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"gopkg.in/yaml.v3"
)

// taskFrontmatter is the YAML frontmatter of a task file. Field names follow
// the canonical Task model (spec.md §3), not the teacher's status-bucket
// model.
type taskFrontmatter struct {
	Gid          string           `yaml:"gid"`
	Name         string           `yaml:"name"`
	Completed    bool             `yaml:"completed"`
	DueOn        string           `yaml:"due_on,omitempty"`
	StartOn      string           `yaml:"start_on,omitempty"`
	Assignee     string           `yaml:"assignee,omitempty"`
	AssigneeGid  string           `yaml:"assignee_gid,omitempty"`
	Tags         []string         `yaml:"tags,omitempty"`
	Parent       string           `yaml:"parent,omitempty"`
	Priority     backend.Priority `yaml:"priority,omitempty"`
	IsMilestone  bool             `yaml:"is_milestone,omitempty"`
	Sections     []string         `yaml:"sections,omitempty"`
	Dependencies []string         `yaml:"dependencies,omitempty"`
	Dependents   []string         `yaml:"dependents,omitempty"`
	Created      time.Time        `yaml:"created"`
	Updated      time.Time        `yaml:"updated"`
}

// readTaskFile reads one task from a markdown file with YAML frontmatter.
// sectionsByName resolves the section-name list in frontmatter back into
// the Gid-bearing backend.Section values Task.Memberships carries.
func readTaskFile(filePath string, sectionsByName map[string]backend.Section) (*backend.Task, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("localtasks: read file: %w", err)
	}

	frontmatter, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("localtasks: parse frontmatter: %w", err)
	}

	var fm taskFrontmatter
	if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
		return nil, fmt.Errorf("localtasks: unmarshal frontmatter: %w", err)
	}

	task := &backend.Task{
		Gid:          fm.Gid,
		Name:         fm.Name,
		Notes:        extractNotes(body),
		Completed:    fm.Completed,
		DueOn:        nonEmptyPtr(fm.DueOn),
		StartOn:      nonEmptyPtr(fm.StartOn),
		Assignee:     nonEmptyPtr(fm.Assignee),
		AssigneeGid:  nonEmptyPtr(fm.AssigneeGid),
		Tags:         fm.Tags,
		Parent:       nonEmptyPtr(fm.Parent),
		IsMilestone:  fm.IsMilestone,
		Dependencies: fm.Dependencies,
		Dependents:   fm.Dependents,
	}
	if fm.Priority != "" {
		p := fm.Priority
		task.Priority = &p
	}
	for _, name := range fm.Sections {
		if s, ok := sectionsByName[name]; ok {
			task.Memberships = append(task.Memberships, s)
		}
	}

	return task, nil
}

// writeTaskFile writes task to filePath as markdown with YAML frontmatter.
func writeTaskFile(filePath string, task backend.Task, created, updated time.Time) error {
	sectionNames := make([]string, 0, len(task.Memberships))
	for _, s := range task.Memberships {
		sectionNames = append(sectionNames, s.Name)
	}

	fm := taskFrontmatter{
		Gid:          task.Gid,
		Name:         task.Name,
		Completed:    task.Completed,
		DueOn:        derefOr(task.DueOn),
		StartOn:      derefOr(task.StartOn),
		Assignee:     derefOr(task.Assignee),
		AssigneeGid:  derefOr(task.AssigneeGid),
		Tags:         task.Tags,
		Parent:       derefOr(task.Parent),
		IsMilestone:  task.IsMilestone,
		Sections:     sectionNames,
		Dependencies: task.Dependencies,
		Dependents:   task.Dependents,
		Created:      created,
		Updated:      updated,
	}
	if task.Priority != nil {
		fm.Priority = *task.Priority
	}

	frontmatterBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return fmt.Errorf("localtasks: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(frontmatterBytes)
	buf.WriteString("---\n\n")
	if task.Notes != nil && *task.Notes != "" {
		buf.WriteString(*task.Notes)
		buf.WriteString("\n")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("localtasks: create directory: %w", err)
	}
	if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("localtasks: write file: %w", err)
	}
	return nil
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// extractNotes returns the whole body, trimmed, as Notes. Unlike the
// teacher's format there is no "## Comments" section to split out: comments
// are a sibling domain this backend does not persist.
func extractNotes(body []byte) *string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	return &s
}

// parseFrontmatter splits markdown content into its YAML frontmatter and
// body.
func parseFrontmatter(content []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != "---" {
		return nil, nil, fmt.Errorf("file does not start with frontmatter delimiter")
	}

	var frontmatter bytes.Buffer
	foundClose := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			foundClose = true
			break
		}
		frontmatter.WriteString(line)
		frontmatter.WriteString("\n")
	}
	if !foundClose {
		return nil, nil, fmt.Errorf("frontmatter not closed")
	}

	var body bytes.Buffer
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading file: %w", err)
	}

	return frontmatter.Bytes(), body.Bytes(), nil
}

// generateFilename builds a filename from gid and name, mirroring the
// teacher's id-slug convention.
func generateFilename(gid, name string) string {
	slug := slugify(name)
	if slug == "" {
		return gid + ".md"
	}
	if len(slug) > 50 {
		slug = slug[:50]
	}
	return fmt.Sprintf("%s-%s.md", gid, slug)
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}

	out := result.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}
