// Package conflict implements the Conflict Resolver (spec.md §4.4): it
// detects field-level disagreements between competing task versions of the
// same sync-identity and resolves them according to a configured strategy.
package conflict

import (
	"fmt"
	"reflect"
	"time"
)

// Strategy selects how a detected conflict is resolved.
type Strategy string

const (
	SourceWins     Strategy = "source-wins"
	TargetWins     Strategy = "target-wins"
	LastWriteWins  Strategy = "last-write-wins"
	FirstWriteWins Strategy = "first-write-wins"
	Manual         Strategy = "manual"
	Merge          Strategy = "merge"
)

// Resolution records how a conflict was settled.
type Resolution struct {
	ChosenValue   interface{}
	ChosenBackend string
	ResolvedAt    time.Time
}

// Conflict is the ephemeral record of a field-level disagreement between
// two or more backends' values for the same sync-identity and field. Values
// preserves insertion order via BackendOrder since "first/second backend"
// is meaningful for source-wins/target-wins/last-write-wins/first-write-wins.
type Conflict struct {
	Field        string
	Values       map[string]interface{}
	BackendOrder []string
	DetectedAt   time.Time
	Strategy     Strategy
	Resolved     bool
	Resolution   *Resolution
}

// ManualResolverRequired is returned when Resolve is called with the Manual
// strategy but no resolver callback was configured.
type ManualResolverRequired struct {
	Field string
}

func (e *ManualResolverRequired) Error() string {
	return fmt.Sprintf("manual resolution required for field %q but no resolver callback was configured", e.Field)
}

// ManualResolver decides the winning value for a conflict the caller has
// flagged as requiring human/programmatic judgement.
type ManualResolver func(c Conflict) (interface{}, string, error)

// DetectConflicts compares values (keyed by backendId, in backendOrder) for
// a single field and emits a Conflict if any two values compare unequal
// under the equality rule of §4.3 (nil/undefined equal only to each other).
func DetectConflicts(field string, values map[string]interface{}, backendOrder []string, at time.Time) *Conflict {
	if len(backendOrder) < 2 {
		return nil
	}

	first := values[backendOrder[0]]
	for _, b := range backendOrder[1:] {
		if !valuesEqual(first, values[b]) {
			return &Conflict{
				Field:        field,
				Values:       cloneValueMap(values),
				BackendOrder: append([]string(nil), backendOrder...),
				DetectedAt:   at,
			}
		}
	}
	return nil
}

func cloneValueMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func valuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Resolve settles c according to strategy, stamping Resolution and
// Resolved=true on a copy of c which it returns. manual is consulted only
// for the Manual strategy; it may be nil for every other strategy.
func Resolve(c Conflict, strategy Strategy, manual ManualResolver, now time.Time) (Conflict, error) {
	c.Strategy = strategy

	if len(c.BackendOrder) == 0 {
		return c, fmt.Errorf("conflict: no backend order recorded for field %q", c.Field)
	}

	var chosenValue interface{}
	var chosenBackend string

	switch strategy {
	case SourceWins, LastWriteWins:
		chosenBackend = c.BackendOrder[0]
		chosenValue = c.Values[chosenBackend]
	case TargetWins:
		chosenBackend = c.BackendOrder[1]
		chosenValue = c.Values[chosenBackend]
	case FirstWriteWins:
		chosenBackend = c.BackendOrder[0]
		chosenValue = c.Values[chosenBackend]
	case Manual:
		if manual == nil {
			return c, &ManualResolverRequired{Field: c.Field}
		}
		v, backendID, err := manual(c)
		if err != nil {
			return c, err
		}
		chosenValue = v
		chosenBackend = backendID
	case Merge:
		merged := c.Values[c.BackendOrder[0]]
		winner := c.BackendOrder[0]
		for _, b := range c.BackendOrder[1:] {
			merged = MergeValues(merged, c.Values[b])
			winner = b
		}
		chosenValue = merged
		chosenBackend = winner
	default:
		return c, fmt.Errorf("conflict: unknown strategy %q", strategy)
	}

	c.Resolved = true
	c.Resolution = &Resolution{
		ChosenValue:   chosenValue,
		ChosenBackend: chosenBackend,
		ResolvedAt:    now,
	}
	return c, nil
}
