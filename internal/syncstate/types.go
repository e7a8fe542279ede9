// Package syncstate implements the Sync-State Store (spec.md §4.2): durable
// persistence of SyncItems and IdMappings, the cross-backend identity anchor
// the sync engines and change detector use to know which task in backend A
// corresponds to which task in backend B.
package syncstate

import "time"

// SyncItem is the identity anchor for a task across participating backends.
// syncId is immutable once assigned; updatedAt is non-decreasing.
type SyncItem struct {
	SyncID string `json:"syncId"`

	// BackendIDs maps backendId -> the task's gid in that backend. At
	// most one entry per backend.
	BackendIDs map[string]string `json:"backendIds"`

	// Versions maps backendId -> the last-recorded content hash for that
	// backend's copy of the task.
	Versions map[string]string `json:"versions"`

	// LastSyncTimes maps backendId -> the ISO-8601 time this item was
	// last reconciled against that backend.
	LastSyncTimes map[string]time.Time `json:"lastSyncTimes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	HasConflicts bool `json:"hasConflicts,omitempty"`
}

// clone returns a deep copy so callers can't mutate store-internal state
// through a returned pointer.
func (s SyncItem) clone() SyncItem {
	out := s
	out.BackendIDs = cloneStringMap(s.BackendIDs)
	out.Versions = cloneStringMap(s.Versions)
	out.LastSyncTimes = make(map[string]time.Time, len(s.LastSyncTimes))
	for k, v := range s.LastSyncTimes {
		out.LastSyncTimes[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IDMapping is a projection of one SyncItem.BackendIDs pair, kept for O(1)
// lookup of "what is this backend-local id in the other backend". For a
// SyncItem with N populated backend slots, N*(N-1) mapping rows exist (both
// directions, every pair).
type IDMapping struct {
	SyncID         string    `json:"syncId"`
	SourceBackend  string    `json:"sourceBackend"`
	SourceID       string    `json:"sourceId"`
	TargetBackend  string    `json:"targetBackend"`
	TargetID       string    `json:"targetId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastVerifiedAt time.Time `json:"lastVerifiedAt"`
}

// mappingKey is the composite lookup key (sourceBackend, sourceId,
// targetBackend) used for the in-memory mapping index.
type mappingKey struct {
	sourceBackend string
	sourceID      string
	targetBackend string
}

// ItemPartial specifies fields to change on an existing SyncItem. A nil
// field means no change. SyncID can never be changed through Update — it is
// immutable once assigned.
type ItemPartial struct {
	BackendIDs    map[string]string
	Versions      map[string]string
	LastSyncTimes map[string]time.Time
	HasConflicts  *bool
}

// NotFoundError is returned by operations that reference an unknown syncId.
type NotFoundError struct {
	SyncID string
}

func (e *NotFoundError) Error() string {
	return "sync item not found: " + e.SyncID
}
