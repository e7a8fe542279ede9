// Package syncengine implements the One-Way, Two-Way, and N-Way
// reconciliation engines (spec.md §4.5-4.7): the orchestration layer that
// calls the Change Detector against participating backends, resolves
// competing changes via the Conflict Resolver, and writes results back
// through the Backend Adapter Contract while keeping the Sync-State Store
// current.
package syncengine

import (
	"time"

	"github.com/alexbrand/tasksync/internal/conflict"
)

// Direction selects which reconciliation engine runs.
type Direction string

const (
	OneWayDirection Direction = "one-way"
	TwoWayDirection Direction = "two-way"
	NWayDirection   Direction = "n-way"
)

// Phase names the stage of an in-progress run, reported via Callbacks.OnProgress.
type Phase string

const (
	PhaseDetectingChanges   Phase = "detecting-changes"
	PhaseResolvingConflicts Phase = "resolving-conflicts"
	PhaseSyncing            Phase = "syncing"
	PhaseFinalizing         Phase = "finalizing"
)

// Filter suppresses changes that must not propagate.
type Filter struct {
	Completed     *bool
	Tags          []string
	Sections      []string
	Assignees     []string
	ModifiedAfter *time.Time
	CustomFilter  func(itemID string) bool
}

// Config carries every recognized sync option (spec.md §6).
type Config struct {
	Direction        Direction
	ConflictStrategy conflict.Strategy

	SyncTags       bool
	SyncSections   bool
	SyncSubtasks   bool
	SyncComments   bool
	SyncAttachments bool
	SyncDependencies bool
	SyncTimeEntries bool
	SyncCustomFields bool

	DryRun    bool
	BatchSize int

	Filter Filter

	Callbacks Callbacks
}

// Callbacks lets the caller observe and influence a run in progress.
type Callbacks struct {
	OnProgress func(Progress)
	OnConflict conflict.ManualResolver
	OnError    func(SyncError)
}

// Progress is emitted at phase transitions; OneWay also emits one after
// every processed item.
type Progress struct {
	Phase      Phase
	Percentage int
	ItemsDone  int
	ItemsTotal int
}

// Stats accumulates per-run counters.
type Stats struct {
	ItemsChecked       int
	ItemsCreated       int
	ItemsUpdated       int
	ItemsDeleted       int
	ItemsSkipped       int
	ConflictsDetected  int
	ConflictsResolved  int
}

// ErrorKind tags the category of a SyncError (spec.md §7).
type ErrorKind string

const (
	ErrNetwork    ErrorKind = "network"
	ErrValidation ErrorKind = "validation"
	ErrConflict   ErrorKind = "conflict"
	ErrBackend    ErrorKind = "backend"
	ErrCancelled  ErrorKind = "cancelled"
	ErrUnknown    ErrorKind = "unknown"
)

// SyncError is the structured error record pushed to Result.Errors and
// delivered through Callbacks.OnError.
type SyncError struct {
	Kind      ErrorKind
	Message   string
	ItemID    string
	Backend   string
	Cause     error
}

func (e SyncError) Error() string { return e.Message }

// classifyError derives an ErrorKind by substring heuristic on err's
// message when the cause does not already carry a tagged kind (spec.md §7:
// "Kinds are derived by substring heuristic on the underlying failure's
// message if the adapter does not tag them itself").
func classifyError(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}
	if _, ok := err.(*conflict.ManualResolverRequired); ok {
		return ErrConflict
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "timeout", "connection", "dial", "EOF", "network"):
		return ErrNetwork
	case containsAny(msg, "invalid", "required", "validation"):
		return ErrValidation
	case containsAny(msg, "not found", "backend", "rate limit"):
		return ErrBackend
	case containsAny(msg, "cancel", "context deadline"):
		return ErrCancelled
	default:
		return ErrUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if indexFold(s, sub) {
			return true
		}
	}
	return false
}

// indexFold reports whether sub occurs within s, case-insensitively,
// without pulling in strings.ToLower allocations for every comparison.
func indexFold(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if equalFold(s[i:i+len(sub)], sub) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Result is the envelope returned to the caller (spec.md §6).
type Result struct {
	Success     bool
	Direction   Direction
	Backends    []string
	Stats       Stats
	Conflicts   []conflict.Conflict
	Errors      []SyncError
	StartedAt   time.Time
	CompletedAt time.Time
	DurationMs  int64
}
