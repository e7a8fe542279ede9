// Package memorytasks implements an in-memory backend.Backend used as a test
// fixture for the sync engines: it lets tests exercise two- and N-backend
// reconciliation scenarios without filesystem or network I/O.
package memorytasks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexbrand/tasksync/internal/backend"
)

// Backend is a map-backed, goroutine-safe backend.Backend implementation.
type Backend struct {
	mu       sync.Mutex
	id       string
	tasks    map[string]backend.Task
	tags     map[string]backend.Tag
	sections map[string]backend.Section
	nextGid  int
}

// New returns an empty in-memory backend identified by id.
func New(id string) *Backend {
	return &Backend{
		id:       id,
		tasks:    make(map[string]backend.Task),
		tags:     make(map[string]backend.Tag),
		sections: make(map[string]backend.Section),
	}
}

func (b *Backend) ID() string { return b.id }

// Seed installs task directly under its own Gid, bypassing CreateTask's
// gid-assignment — used by tests to set up pre-existing backend state.
func (b *Backend) Seed(task backend.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks[task.Gid] = task
}

func (b *Backend) ListTasks() ([]backend.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]backend.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gid < out[j].Gid })
	return out, nil
}

func (b *Backend) GetTask(gid string) (*backend.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[gid]
	if !ok {
		return nil, &backend.NotFoundError{Gid: gid}
	}
	return &t, nil
}

func (b *Backend) CreateTask(input backend.TaskInput) (*backend.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var gid string
	for {
		b.nextGid++
		gid = fmt.Sprintf("%s-%d", b.id, b.nextGid)
		if _, taken := b.tasks[gid]; !taken {
			break
		}
	}
	t := backend.Task{
		Gid:         gid,
		Name:        input.Name,
		Notes:       input.Notes,
		DueOn:       input.DueOn,
		Priority:    input.Priority,
		IsMilestone: input.IsMilestone,
	}
	b.tasks[gid] = t
	return &t, nil
}

func (b *Backend) UpdateTask(gid string, partial backend.TaskPartial) (*backend.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[gid]
	if !ok {
		return nil, &backend.NotFoundError{Gid: gid}
	}

	if partial.Name != nil {
		t.Name = *partial.Name
	}
	if partial.Notes != nil {
		t.Notes = *partial.Notes
	}
	if partial.Completed != nil {
		t.Completed = *partial.Completed
	}
	if partial.DueOn != nil {
		t.DueOn = *partial.DueOn
	}
	if partial.StartOn != nil {
		t.StartOn = *partial.StartOn
	}
	if partial.Assignee != nil {
		t.Assignee = *partial.Assignee
	}
	if partial.AssigneeGid != nil {
		t.AssigneeGid = *partial.AssigneeGid
	}
	if partial.Tags != nil {
		t.Tags = *partial.Tags
	}
	if partial.Parent != nil {
		t.Parent = *partial.Parent
	}
	if partial.Priority != nil {
		t.Priority = *partial.Priority
	}
	if partial.IsMilestone != nil {
		t.IsMilestone = *partial.IsMilestone
	}
	if partial.Memberships != nil {
		t.Memberships = *partial.Memberships
	}

	b.tasks[gid] = t
	return &t, nil
}

func (b *Backend) DeleteTask(gid string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.tasks[gid]; !ok {
		return &backend.NotFoundError{Gid: gid}
	}
	delete(b.tasks, gid)
	return nil
}

func (b *Backend) ListTags() ([]backend.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]backend.Tag, 0, len(b.tags))
	for _, t := range b.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) CreateTag(name string) (*backend.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tag := backend.Tag{Gid: fmt.Sprintf("%s-tag-%d", b.id, len(b.tags)+1), Name: name}
	b.tags[name] = tag
	return &tag, nil
}

func (b *Backend) ListSections() ([]backend.Section, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]backend.Section, 0, len(b.sections))
	for _, s := range b.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) CreateSection(name string) (*backend.Section, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sec := backend.Section{Gid: fmt.Sprintf("%s-section-%d", b.id, len(b.sections)+1), Name: name}
	b.sections[name] = sec
	return &sec, nil
}
