// Package backend defines the core types and the adapter contract that every
// task-management backend participating in a sync must implement. The sync
// core (internal/syncstate, internal/changedetect, internal/conflict,
// internal/syncengine) never talks to a concrete backend directly — it only
// ever calls through this interface.
package backend

import "time"

// Priority is the canonical priority level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is one of the canonical priority levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Section is a named grouping a task can belong to (e.g. a project section
// or board column). Gid is only meaningful within the backend that produced
// it.
type Section struct {
	Gid  string `json:"gid" yaml:"gid"`
	Name string `json:"name" yaml:"name"`
}

// Tag is a label a task can carry.
type Tag struct {
	Gid  string `json:"gid" yaml:"gid"`
	Name string `json:"name" yaml:"name"`
}

// Comment is a remark attached to a task. Comments are not part of the
// syncable Task surface (see spec §1 — comments are a sibling domain
// service) but backends may expose them for completeness.
type Comment struct {
	ID      string    `json:"id" yaml:"id"`
	Author  string    `json:"author" yaml:"author"`
	Body    string    `json:"body" yaml:"body"`
	Created time.Time `json:"created" yaml:"created"`
}

// Task is the entity synchronized across backends. Field names and
// optionality follow the data model in spec.md §3 exactly.
type Task struct {
	// Gid is the task's identifier within its owning backend. Identity
	// across backends is mediated entirely by the Sync-State Store — Gid
	// has no meaning outside the backend that issued it.
	Gid string `json:"gid" yaml:"gid"`

	Name      string  `json:"name" yaml:"name"`
	Notes     *string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Completed bool    `json:"completed" yaml:"completed"`

	// DueOn and StartOn are calendar dates in YYYY-MM-DD form (no time
	// component, no timezone).
	DueOn   *string `json:"dueOn,omitempty" yaml:"dueOn,omitempty"`
	StartOn *string `json:"startOn,omitempty" yaml:"startOn,omitempty"`

	Assignee    *string `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	AssigneeGid *string `json:"assigneeGid,omitempty" yaml:"assigneeGid,omitempty"`

	// Tags holds the task's tag names. Backends that encode attributes as
	// synthetic tags (e.g. "priority:high") must strip those before
	// returning a Task.
	Tags []string `json:"tags" yaml:"tags"`

	Parent *string `json:"parent,omitempty" yaml:"parent,omitempty"`

	Priority    *Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	IsMilestone bool      `json:"isMilestone" yaml:"isMilestone"`

	// Memberships lists the sections this task belongs to, in backend
	// order. Order is not syncable (the content hash sorts by Gid) but is
	// preserved for display.
	Memberships []Section `json:"memberships,omitempty" yaml:"memberships,omitempty"`

	// Dependencies are gids of tasks that block this one; Dependents are
	// gids of tasks blocked by this one.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty" yaml:"dependents,omitempty"`
}

// TaskInput specifies the fields accepted when creating a new task.
// CreateTask is intentionally narrower than the full Task surface (spec
// §4.1): callers follow a create-then-update pattern for fields not listed
// here (Completed, StartOn, Assignee, Memberships).
type TaskInput struct {
	Name        string
	Notes       *string
	DueOn       *string
	Priority    *Priority
	IsMilestone bool
}

// TaskPartial specifies fields to change on an existing task. A nil field
// means "no change". Optional Task fields use a double pointer so "set to
// empty" can be distinguished from "no change": a nil **string means no
// change, a **string pointing at a nil *string means "clear this field",
// and a **string pointing at a non-nil *string means "set this field".
type TaskPartial struct {
	Name        *string
	Notes       **string
	Completed   *bool
	DueOn       **string
	StartOn     **string
	Assignee    **string
	AssigneeGid **string
	Tags        *[]string
	Parent      **string
	Priority    **Priority
	IsMilestone *bool
	Memberships *[]Section
}

// Backend is the uniform contract the sync core consumes. Implementations
// map idiosyncratic remote representations onto the canonical Task shape
// and must do so transparently: a priority encoded as a tag in the remote
// system must already be reflected in Task.Priority and must not leak into
// Task.Tags.
type Backend interface {
	// ID returns the process-unique identifier for this backend
	// participant (e.g. "asana-work", "local-laptop"). Used as the
	// backendId throughout the Sync-State Store and as a component of
	// syncPairId.
	ID() string

	ListTasks() ([]Task, error)
	GetTask(gid string) (*Task, error)
	CreateTask(input TaskInput) (*Task, error)
	UpdateTask(gid string, partial TaskPartial) (*Task, error)
	DeleteTask(gid string) error

	ListTags() ([]Tag, error)
	CreateTag(name string) (*Tag, error)

	ListSections() ([]Section, error)
	CreateSection(name string) (*Section, error)
}

// NotFoundError is returned by GetTask/UpdateTask/DeleteTask when no task
// with the given gid exists in the backend.
type NotFoundError struct {
	Gid string
}

func (e *NotFoundError) Error() string {
	return "task not found: " + e.Gid
}

// Claimer is an optional interface for backends that support agent
// claim/release, kept from the teacher's Backend contract for forward
// compatibility with CLI layers built on top of the sync core. Nothing in
// internal/syncstate, internal/changedetect, internal/conflict, or
// internal/syncengine type-asserts against it: claiming a task for an agent
// is a collaboration concern, not a sync-reconciliation one.
type Claimer interface {
	// Claim assigns the task to agentID. Returns an error if it is already
	// claimed by a different agent.
	Claim(gid string, agentID string) (*Task, error)

	// Release clears the task's claim, if any.
	Release(gid string) error
}

// Commenter is an optional interface for backends that expose comments.
// Comments are a sibling domain to the syncable Task surface (see the
// Comment doc comment above) so this is split out of Backend rather than
// folded into the core contract the way the teacher's Backend.ListComments/
// AddComment were.
type Commenter interface {
	ListComments(gid string) ([]Comment, error)
	AddComment(gid string, body string) (*Comment, error)
}
