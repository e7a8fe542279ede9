package syncengine

import (
	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/changedetect"
)

// taskToValues extracts the syncable fields of task into a plain value map
// keyed by field name, the shape internal/conflict operates on.
func taskToValues(task backend.Task) map[string]interface{} {
	return map[string]interface{}{
		"name":        task.Name,
		"notes":       derefString(task.Notes),
		"completed":   task.Completed,
		"dueOn":       derefString(task.DueOn),
		"startOn":     derefString(task.StartOn),
		"assignee":    derefString(task.Assignee),
		"assigneeGid": derefString(task.AssigneeGid),
		"tags":        tagsToAny(task.Tags),
		"parent":      derefString(task.Parent),
		"priority":    derefPriority(task.Priority),
		"isMilestone": task.IsMilestone,
	}
}

func derefString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func derefPriority(p *backend.Priority) interface{} {
	if p == nil {
		return nil
	}
	return string(*p)
}

func tagsToAny(tags []string) interface{} {
	if tags == nil {
		return nil
	}
	return append([]string(nil), tags...)
}

// valuesToPartial builds a TaskPartial that sets every field present in
// values to the value recorded there. Used to write a merged/reconciled
// record back to a backend via UpdateTask.
func valuesToPartial(values map[string]interface{}) backend.TaskPartial {
	var p backend.TaskPartial

	if v, ok := values["name"].(string); ok {
		p.Name = &v
	}
	if v, ok := values["notes"]; ok {
		s := toStringPtr(v)
		p.Notes = &s
	}
	if v, ok := values["completed"].(bool); ok {
		p.Completed = &v
	}
	if v, ok := values["dueOn"]; ok {
		s := toStringPtr(v)
		p.DueOn = &s
	}
	if v, ok := values["startOn"]; ok {
		s := toStringPtr(v)
		p.StartOn = &s
	}
	if v, ok := values["assignee"]; ok {
		s := toStringPtr(v)
		p.Assignee = &s
	}
	if v, ok := values["assigneeGid"]; ok {
		s := toStringPtr(v)
		p.AssigneeGid = &s
	}
	if v, ok := values["tags"]; ok {
		tags := toStringSlice(v)
		p.Tags = &tags
	}
	if v, ok := values["parent"]; ok {
		s := toStringPtr(v)
		p.Parent = &s
	}
	if v, ok := values["priority"]; ok {
		pr := toPriorityPtr(v)
		p.Priority = &pr
	}
	if v, ok := values["isMilestone"].(bool); ok {
		p.IsMilestone = &v
	}

	return p
}

func toStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toPriorityPtr(v interface{}) *backend.Priority {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	p := backend.Priority(s)
	return &p
}

// fieldChangesToNames projects changedetect.FieldChange slices down to
// their field-name set, used to build the §4.6/§4.7 "union of changed
// fields" before conflict detection.
func fieldChangesToNames(changes []changedetect.FieldChange) map[string]bool {
	out := make(map[string]bool, len(changes))
	for _, c := range changes {
		out[c.Field] = true
	}
	return out
}

// applyValuesToTask returns a copy of base with every syncable field
// present in values overwritten; fields outside the syncable set (Gid,
// Memberships, Dependencies, Dependents) are carried through from base
// unchanged, since merge/conflict resolution never touches them directly.
func applyValuesToTask(base backend.Task, values map[string]interface{}) backend.Task {
	t := base
	if v, ok := values["name"].(string); ok {
		t.Name = v
	}
	if v, ok := values["notes"]; ok {
		t.Notes = toStringPtr(v)
	}
	if v, ok := values["completed"].(bool); ok {
		t.Completed = v
	}
	if v, ok := values["dueOn"]; ok {
		t.DueOn = toStringPtr(v)
	}
	if v, ok := values["startOn"]; ok {
		t.StartOn = toStringPtr(v)
	}
	if v, ok := values["assignee"]; ok {
		t.Assignee = toStringPtr(v)
	}
	if v, ok := values["assigneeGid"]; ok {
		t.AssigneeGid = toStringPtr(v)
	}
	if v, ok := values["tags"]; ok {
		t.Tags = toStringSlice(v)
	}
	if v, ok := values["parent"]; ok {
		t.Parent = toStringPtr(v)
	}
	if v, ok := values["priority"]; ok {
		t.Priority = toPriorityPtr(v)
	}
	if v, ok := values["isMilestone"].(bool); ok {
		t.IsMilestone = v
	}
	return t
}

// buildFullPartial builds a TaskPartial that sets every syncable field to
// task's current value, used when one side's record wholly replaces
// another's (e.g. adopting two unbound same-identity tasks that disagree).
func buildFullPartial(task backend.Task) backend.TaskPartial {
	return valuesToPartial(taskToValues(task))
}
