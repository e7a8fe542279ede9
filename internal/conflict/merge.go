package conflict

import (
	"reflect"
)

// MergeValues implements the type-dispatched merge rules of spec.md §4.4
// rule 3, used both by the Merge strategy and by the engines when combining
// values during N-way unions.
func MergeValues(a, b interface{}) interface{} {
	if a == nil && b != nil {
		return b
	}
	if b == nil && a != nil {
		return a
	}
	if a == nil && b == nil {
		return nil
	}

	switch av := a.(type) {
	case []interface{}:
		if bv, ok := b.([]interface{}); ok {
			return mergeArrays(av, bv)
		}
	case []string:
		if bv, ok := b.([]string); ok {
			return mergeStringArrays(av, bv)
		}
	case map[string]interface{}:
		if bv, ok := b.(map[string]interface{}); ok {
			return mergeObjects(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return mergeStrings(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return mergeNumbers(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			if bv > av {
				return bv
			}
			return av
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av || bv
		}
	}

	// Otherwise: the first operand.
	return a
}

// mergeArrays unions two arrays, preserving the first operand's order and
// appending elements of b not already present under equality.
func mergeArrays(a, b []interface{}) []interface{} {
	out := append([]interface{}(nil), a...)
	for _, v := range b {
		if !containsEqual(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func mergeStringArrays(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

func containsEqual(haystack []interface{}, needle interface{}) bool {
	for _, v := range haystack {
		if reflect.DeepEqual(v, needle) {
			return true
		}
	}
	return false
}

// mergeObjects recursively merges two objects key-wise: shared keys that
// are themselves equal scalars keep that value; otherwise the value is
// recursively merged via MergeValues. Keys present in only one object are
// carried through unchanged.
func mergeObjects(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, ok := out[k]
		if !ok {
			out[k] = bv
			continue
		}
		if reflect.DeepEqual(av, bv) {
			out[k] = av
			continue
		}
		out[k] = MergeValues(av, bv)
	}
	return out
}

// mergeStrings: equal values pass through; unequal values prefer the longer
// (more information).
func mergeStrings(a, b string) string {
	if a == b {
		return a
	}
	if len(b) > len(a) {
		return b
	}
	return a
}

func mergeNumbers(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

// MergeItems folds every field of a task pair, taking field-local
// MergeValues for disagreements. a and b are maps of syncable field name to
// value (typically produced by backend.Task field extraction); the result
// is the single reconciled record an engine writes back.
func MergeItems(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, ok := out[k]
		if !ok {
			out[k] = bv
			continue
		}
		out[k] = MergeValues(av, bv)
	}
	return out
}
