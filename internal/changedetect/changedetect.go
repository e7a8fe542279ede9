// Package changedetect implements the Change Detector (spec.md §4.3): it
// compares a backend's current task snapshot against the Sync-State Store's
// recorded content hashes and classifies each task as created, updated, or
// deleted since the last reconciliation.
package changedetect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/syncstate"
)

// ChangeType classifies how a task differs from the last-recorded sync
// state.
type ChangeType string

const (
	Created ChangeType = "created"
	Updated ChangeType = "updated"
	Deleted ChangeType = "deleted"
)

// SyncableFields are the only Task attributes considered for update
// detection and propagation (spec.md §4.3). The detector never reports a
// hash-level "updated" as a field-level diff; DetectFieldChanges is the
// exact-diff helper used by engines that retain both prior and current
// values.
var SyncableFields = []string{
	"name", "notes", "completed", "dueOn", "startOn",
	"assignee", "assigneeGid", "tags", "parent", "priority", "isMilestone",
}

// ItemChange is the ephemeral record produced by the detector and consumed
// by the engines. It is never persisted.
type ItemChange struct {
	ItemID        string
	ChangeType    ChangeType
	SourceBackend string

	// ChangedFields is the syncable-field list potentially affected. For
	// a hash-level Updated classification this is always SyncableFields
	// in full (the detector cannot tell which fields moved from a hash
	// diff alone); callers that need exact fields use DetectFieldChanges
	// once they have both task values in hand.
	ChangedFields []string

	OldValues *backend.Task // always nil: the store keeps hashes, not task contents
	NewValues *backend.Task // nil for Deleted

	DetectedAt time.Time
}

// Detect classifies every task currently reported by the backend against
// the SyncItems the store has on file for backendID. tasks must be the full
// current snapshot (Detect itself does no fetching).
func Detect(backendID string, tasks []backend.Task, store *syncstate.Store, now time.Time) ([]ItemChange, error) {
	known := store.ItemsForBackend(backendID)

	knownGids := make(map[string]syncstate.SyncItem, len(known))
	for _, item := range known {
		if gid, ok := item.BackendIDs[backendID]; ok {
			knownGids[gid] = item
		}
	}

	seen := make(map[string]bool, len(tasks))
	var changes []ItemChange

	for i := range tasks {
		task := tasks[i]
		seen[task.Gid] = true

		item, tracked := knownGids[task.Gid]
		if !tracked {
			changes = append(changes, ItemChange{
				ItemID:        task.Gid,
				ChangeType:    Created,
				SourceBackend: backendID,
				ChangedFields: append([]string(nil), SyncableFields...),
				NewValues:     &task,
				DetectedAt:    now,
			})
			continue
		}

		hash, err := ContentHash(task)
		if err != nil {
			return nil, err
		}
		if hash != item.Versions[backendID] {
			changes = append(changes, ItemChange{
				ItemID:        task.Gid,
				ChangeType:    Updated,
				SourceBackend: backendID,
				ChangedFields: append([]string(nil), SyncableFields...),
				NewValues:     &task,
				DetectedAt:    now,
			})
		}
	}

	for gid := range knownGids {
		if !seen[gid] {
			changes = append(changes, ItemChange{
				ItemID:        gid,
				ChangeType:    Deleted,
				SourceBackend: backendID,
				DetectedAt:    now,
			})
		}
	}

	return changes, nil
}

// normalizedTask is the JSON shape hashed by ContentHash. Field order here
// does not affect the digest: ContentHash re-encodes it through a map so
// the object keys come out sorted, and every field is present in every
// encoding (defaults substituted for nil).
type normalizedTask struct {
	Name         string   `json:"name"`
	Notes        string   `json:"notes"`
	Completed    bool     `json:"completed"`
	DueOn        string   `json:"dueOn"`
	StartOn      string   `json:"startOn"`
	Assignee     string   `json:"assignee"`
	AssigneeGid  string   `json:"assigneeGid"`
	Priority     string   `json:"priority"`
	IsMilestone  bool     `json:"isMilestone"`
	Tags         []string `json:"tags"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
	Parent       string   `json:"parent"`
	Sections     []string `json:"sections"`
}

// ContentHash computes the SHA-256 hex digest of task's normalization
// (spec.md §4.3): backend-idiosyncratic noise dropped, defaults substituted
// for absent optional fields, tags/dependencies/dependents/sections sorted,
// encoded as canonical JSON (sorted keys — encoding/json emits struct
// fields in declaration order but map keys sorted, hence the round trip
// through a map) before hashing.
func ContentHash(task backend.Task) (string, error) {
	n := normalizedTask{
		Name:         task.Name,
		Notes:        derefOr(task.Notes, ""),
		Completed:    task.Completed,
		DueOn:        derefOr(task.DueOn, ""),
		StartOn:      derefOr(task.StartOn, ""),
		Assignee:     derefOr(task.Assignee, ""),
		AssigneeGid:  derefOr(task.AssigneeGid, ""),
		Priority:     derefPriorityOr(task.Priority, ""),
		IsMilestone:  task.IsMilestone,
		Tags:         sortedCopy(task.Tags),
		Dependencies: sortedCopy(task.Dependencies),
		Dependents:   sortedCopy(task.Dependents),
		Parent:       derefOr(task.Parent, ""),
		Sections:     sectionGids(task.Memberships),
	}

	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	var canonical map[string]interface{}
	if err := json.Unmarshal(data, &canonical); err != nil {
		return "", err
	}
	if data, err = json.Marshal(canonical); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func derefPriorityOr(p *backend.Priority, def string) string {
	if p == nil {
		return def
	}
	return string(*p)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sectionGids(memberships []backend.Section) []string {
	gids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		gids = append(gids, m.Gid)
	}
	sort.Strings(gids)
	return gids
}

// GroupChangesByType partitions changes by ChangeType.
func GroupChangesByType(changes []ItemChange) map[ChangeType][]ItemChange {
	out := make(map[ChangeType][]ItemChange)
	for _, c := range changes {
		out[c.ChangeType] = append(out[c.ChangeType], c)
	}
	return out
}

// FilterChangesByTime returns the subset of changes detected strictly after
// t.
func FilterChangesByTime(changes []ItemChange, after time.Time) []ItemChange {
	var out []ItemChange
	for _, c := range changes {
		if c.DetectedAt.After(after) {
			out = append(out, c)
		}
	}
	return out
}
