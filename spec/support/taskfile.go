// Package support provides test helpers and fixtures for the tasksync CLI specs.
package support

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskFile represents a parsed localtasks markdown file: YAML frontmatter
// followed by a free-form notes body, matching internal/localtasks'
// on-disk format.
type TaskFile struct {
	// Path is the absolute path to the task file
	Path string

	Gid         string   `yaml:"gid"`
	Name        string   `yaml:"name"`
	Completed   bool     `yaml:"completed"`
	DueOn       string   `yaml:"due_on,omitempty"`
	StartOn     string   `yaml:"start_on,omitempty"`
	Assignee    string   `yaml:"assignee,omitempty"`
	AssigneeGid string   `yaml:"assignee_gid,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Parent      string   `yaml:"parent,omitempty"`
	Priority    string   `yaml:"priority,omitempty"`
	IsMilestone bool     `yaml:"is_milestone,omitempty"`
	Sections    []string `yaml:"sections,omitempty"`
	Created     string   `yaml:"created,omitempty"`
	Updated     string   `yaml:"updated,omitempty"`

	// Notes is the body content after the frontmatter delimiter.
	Notes string
}

// WriteTaskFile writes a markdown task file into workspaceDir using
// localtasks' frontmatter-plus-notes convention, for fixture setup.
func WriteTaskFile(workspaceDir string, tf *TaskFile) error {
	if tf.Gid == "" {
		return fmt.Errorf("task fixture requires a gid")
	}
	if tf.Created == "" {
		tf.Created = time.Now().UTC().Format(time.RFC3339)
	}
	if tf.Updated == "" {
		tf.Updated = tf.Created
	}

	fm := struct {
		Gid         string   `yaml:"gid"`
		Name        string   `yaml:"name"`
		Completed   bool     `yaml:"completed"`
		DueOn       string   `yaml:"due_on,omitempty"`
		StartOn     string   `yaml:"start_on,omitempty"`
		Assignee    string   `yaml:"assignee,omitempty"`
		AssigneeGid string   `yaml:"assignee_gid,omitempty"`
		Tags        []string `yaml:"tags,omitempty"`
		Parent      string   `yaml:"parent,omitempty"`
		Priority    string   `yaml:"priority,omitempty"`
		IsMilestone bool     `yaml:"is_milestone,omitempty"`
		Sections    []string `yaml:"sections,omitempty"`
		Created     string   `yaml:"created"`
		Updated     string   `yaml:"updated"`
	}{
		Gid: tf.Gid, Name: tf.Name, Completed: tf.Completed, DueOn: tf.DueOn,
		StartOn: tf.StartOn, Assignee: tf.Assignee, AssigneeGid: tf.AssigneeGid,
		Tags: tf.Tags, Parent: tf.Parent, Priority: tf.Priority,
		IsMilestone: tf.IsMilestone, Sections: tf.Sections,
		Created: tf.Created, Updated: tf.Updated,
	}

	frontmatterBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return fmt.Errorf("marshal task frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(frontmatterBytes)
	buf.WriteString("---\n\n")
	if tf.Notes != "" {
		buf.WriteString(tf.Notes)
		buf.WriteString("\n")
	}

	name := slugifyFixtureName(tf.Name)
	var filename string
	if name == "" {
		filename = tf.Gid + ".md"
	} else {
		filename = fmt.Sprintf("%s-%s.md", tf.Gid, name)
	}

	path := filepath.Join(workspaceDir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return err
	}
	tf.Path = path
	return nil
}

// ReadTaskFiles parses every *.md file directly inside workspaceDir as a
// TaskFile, for post-sync assertions.
func ReadTaskFiles(workspaceDir string) ([]*TaskFile, error) {
	entries, err := os.ReadDir(workspaceDir)
	if err != nil {
		return nil, err
	}

	var files []*TaskFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(workspaceDir, entry.Name())
		tf, err := readTaskFile(path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		files = append(files, tf)
	}
	return files, nil
}

// FindTaskFileByName returns the first task file in workspaceDir whose Name
// matches, or nil if none does.
func FindTaskFileByName(workspaceDir, name string) (*TaskFile, error) {
	files, err := ReadTaskFiles(workspaceDir)
	if err != nil {
		return nil, err
	}
	for _, tf := range files {
		if tf.Name == name {
			return tf, nil
		}
	}
	return nil, nil
}

func readTaskFile(path string) (*TaskFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(string(content), "---\n", 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("file does not contain frontmatter delimiters")
	}

	var tf TaskFile
	if err := yaml.Unmarshal([]byte(parts[1]), &tf); err != nil {
		return nil, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	tf.Path = path
	tf.Notes = strings.TrimSpace(parts[2])
	return &tf, nil
}

func slugifyFixtureName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if len(slug) > 50 {
		slug = slug[:50]
	}
	return slug
}
