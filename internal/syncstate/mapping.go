package syncstate

import (
	"sort"
	"time"
)

// DeriveMappings computes the full set of IDMapping rows for a SyncItem's
// current backend slots, without touching a Store. Exposed separately from
// Store's internal rebuildMappingsForItem so tests and callers can reason
// about expected mapping shape without opening a store on disk.
//
// For N populated backend slots this returns N*(N-1) rows: every ordered
// pair, both directions, timestamped at.
func DeriveMappings(item SyncItem, at time.Time) []IDMapping {
	backends := make([]string, 0, len(item.BackendIDs))
	for b := range item.BackendIDs {
		backends = append(backends, b)
	}
	sort.Strings(backends)

	var out []IDMapping
	for _, src := range backends {
		for _, dst := range backends {
			if src == dst {
				continue
			}
			out = append(out, IDMapping{
				SyncID:         item.SyncID,
				SourceBackend:  src,
				SourceID:       item.BackendIDs[src],
				TargetBackend:  dst,
				TargetID:       item.BackendIDs[dst],
				CreatedAt:      at,
				LastVerifiedAt: at,
			})
		}
	}
	return out
}

// MappingCount returns the expected number of IDMapping rows for a SyncItem
// with n populated backend slots: n*(n-1).
func MappingCount(n int) int {
	if n <= 0 {
		return 0
	}
	return n * (n - 1)
}
