package syncengine

import (
	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/changedetect"
)

// applyFilter drops changes that must not propagate per the configured
// Filter. Predicates are evaluated against each change's NewValues; tasks
// is not consulted. Deleted changes carry no current value and always pass
// through.
func applyFilter(changes []changedetect.ItemChange, f Filter, tasks []backend.Task) []changedetect.ItemChange {
	if isEmptyFilter(f) {
		return changes
	}

	out := make([]changedetect.ItemChange, 0, len(changes))
	for _, c := range changes {
		if c.NewValues == nil {
			out = append(out, c)
			continue
		}
		if matchesFilter(*c.NewValues, f) {
			out = append(out, c)
		}
	}
	return out
}

func isEmptyFilter(f Filter) bool {
	return f.Completed == nil && len(f.Tags) == 0 && len(f.Sections) == 0 &&
		len(f.Assignees) == 0 && f.ModifiedAfter == nil && f.CustomFilter == nil
}

func matchesFilter(task backend.Task, f Filter) bool {
	if f.Completed != nil && task.Completed != *f.Completed {
		return false
	}
	if len(f.Tags) > 0 && !anyTagMatches(task.Tags, f.Tags) {
		return false
	}
	if len(f.Assignees) > 0 && !assigneeMatches(task.Assignee, f.Assignees) {
		return false
	}
	if len(f.Sections) > 0 && !anySectionMatches(task.Memberships, f.Sections) {
		return false
	}
	if f.CustomFilter != nil && !f.CustomFilter(task.Gid) {
		return false
	}
	return true
}

func anyTagMatches(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func assigneeMatches(assignee *string, want []string) bool {
	if assignee == nil {
		return false
	}
	for _, w := range want {
		if w == *assignee {
			return true
		}
	}
	return false
}

func anySectionMatches(memberships []backend.Section, want []string) bool {
	for _, w := range want {
		for _, m := range memberships {
			if m.Name == w {
				return true
			}
		}
	}
	return false
}

// buildPartialFromDiffs builds a TaskPartial containing only the fields
// present in diffs, taking each field's value from newValue (spec.md §4.5
// step 3, updated branch: "only fields that (a) are listed in
// changedFields, and (b) actually differ from the current target value").
// It reports whether the resulting partial is non-empty.
func buildPartialFromDiffs(newValue backend.Task, diffs []changedetect.FieldChange) (backend.TaskPartial, bool) {
	var p backend.TaskPartial
	if len(diffs) == 0 {
		return p, false
	}

	for _, d := range diffs {
		switch d.Field {
		case "name":
			name := newValue.Name
			p.Name = &name
		case "notes":
			notes := newValue.Notes
			p.Notes = &notes
		case "completed":
			completed := newValue.Completed
			p.Completed = &completed
		case "dueOn":
			dueOn := newValue.DueOn
			p.DueOn = &dueOn
		case "startOn":
			startOn := newValue.StartOn
			p.StartOn = &startOn
		case "assignee":
			assignee := newValue.Assignee
			p.Assignee = &assignee
		case "assigneeGid":
			assigneeGid := newValue.AssigneeGid
			p.AssigneeGid = &assigneeGid
		case "tags":
			tags := newValue.Tags
			p.Tags = &tags
		case "parent":
			parent := newValue.Parent
			p.Parent = &parent
		case "priority":
			priority := newValue.Priority
			p.Priority = &priority
		case "isMilestone":
			isMilestone := newValue.IsMilestone
			p.IsMilestone = &isMilestone
		}
	}

	return p, true
}

// syncTagTaxonomy computes the name-based set difference between a's and
// b's tags and creates any missing entry in b (spec.md §4.5 step 4: "list
// both sides, compute the set-difference by name (case-sensitive), create
// any missing entry in the target").
func syncTagTaxonomy(a, b backend.Backend, dryRun bool) error {
	aTags, err := a.ListTags()
	if err != nil {
		return err
	}
	bTags, err := b.ListTags()
	if err != nil {
		return err
	}
	bNames := tagNameSet(bTags)

	if dryRun {
		return nil
	}
	for _, t := range aTags {
		if !bNames[t.Name] {
			if _, err := b.CreateTag(t.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// syncTagTaxonomyUnion unions tag names across all backends and creates any
// missing entry in every backend (spec.md §4.7 step 4).
func syncTagTaxonomyUnion(backends []backend.Backend, dryRun bool) error {
	union := make(map[string]bool)
	perBackend := make([]map[string]bool, len(backends))
	for i, b := range backends {
		tags, err := b.ListTags()
		if err != nil {
			return err
		}
		perBackend[i] = tagNameSet(tags)
		for name := range perBackend[i] {
			union[name] = true
		}
	}
	if dryRun {
		return nil
	}
	for name := range union {
		for i, b := range backends {
			if !perBackend[i][name] {
				if _, err := b.CreateTag(name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func tagNameSet(tags []backend.Tag) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t.Name] = true
	}
	return out
}

func syncSectionTaxonomy(a, b backend.Backend, dryRun bool) error {
	aSections, err := a.ListSections()
	if err != nil {
		return err
	}
	bSections, err := b.ListSections()
	if err != nil {
		return err
	}
	bNames := sectionNameSet(bSections)

	if dryRun {
		return nil
	}
	for _, s := range aSections {
		if !bNames[s.Name] {
			if _, err := b.CreateSection(s.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func syncSectionTaxonomyUnion(backends []backend.Backend, dryRun bool) error {
	union := make(map[string]bool)
	perBackend := make([]map[string]bool, len(backends))
	for i, b := range backends {
		sections, err := b.ListSections()
		if err != nil {
			return err
		}
		perBackend[i] = sectionNameSet(sections)
		for name := range perBackend[i] {
			union[name] = true
		}
	}
	if dryRun {
		return nil
	}
	for name := range union {
		for i, b := range backends {
			if !perBackend[i][name] {
				if _, err := b.CreateSection(name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sectionNameSet(sections []backend.Section) map[string]bool {
	out := make(map[string]bool, len(sections))
	for _, s := range sections {
		out[s.Name] = true
	}
	return out
}
