package changedetect

import (
	"reflect"
	"sort"

	"github.com/alexbrand/tasksync/internal/backend"
)

// FieldChange is one syncable field that differs between two Task values,
// under the equality rule of spec.md §4.3: primitives by ==, arrays as
// multisets after element-wise recursive equality (order insignificant),
// objects by deep key-wise recursive equality, null equal to undefined but
// not to any other value.
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// DetectFieldChanges performs an exact field-pair diff across
// SyncableFields, used by engines that retain both the prior and current
// task value (two-way and N-way, after re-fetching both sides) rather than
// relying on a hash-level Updated classification alone.
func DetectFieldChanges(old, updated backend.Task) []FieldChange {
	var out []FieldChange

	cmp := func(field string, o, n interface{}) {
		if !valuesEqual(o, n) {
			out = append(out, FieldChange{Field: field, OldValue: o, NewValue: n})
		}
	}

	cmp("name", old.Name, updated.Name)
	cmp("notes", derefAny(old.Notes), derefAny(updated.Notes))
	cmp("completed", old.Completed, updated.Completed)
	cmp("dueOn", derefAny(old.DueOn), derefAny(updated.DueOn))
	cmp("startOn", derefAny(old.StartOn), derefAny(updated.StartOn))
	cmp("assignee", derefAny(old.Assignee), derefAny(updated.Assignee))
	cmp("assigneeGid", derefAny(old.AssigneeGid), derefAny(updated.AssigneeGid))
	cmp("tags", sortedAny(old.Tags), sortedAny(updated.Tags))
	cmp("parent", derefAny(old.Parent), derefAny(updated.Parent))
	cmp("priority", derefPriorityAny(old.Priority), derefPriorityAny(updated.Priority))
	cmp("isMilestone", old.IsMilestone, updated.IsMilestone)

	return out
}

// derefAny returns nil for a nil *string (so it compares equal to another
// nil via valuesEqual's null/undefined rule) or the dereferenced value.
func derefAny(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func derefPriorityAny(p *backend.Priority) interface{} {
	if p == nil {
		return nil
	}
	return string(*p)
}

func sortedAny(tags []string) interface{} {
	if tags == nil {
		return nil
	}
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return out
}

// valuesEqual implements the §4.3 equality rule: nil equals nil, arrays
// compare as multisets (sorted-then-equal, since callers already sort
// string slices before calling in), everything else by deep equality.
func valuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}
