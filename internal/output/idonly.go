package output

import (
	"fmt"
	"io"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

// IDOnlyFormatter outputs only identifying information, one item per line.
type IDOnlyFormatter struct{}

// FormatResult outputs the item id of every error a sync or status run
// produced, one per line; a clean run prints nothing.
func (f *IDOnlyFormatter) FormatResult(w io.Writer, result *syncengine.Result) error {
	for _, e := range result.Errors {
		if e.ItemID != "" {
			fmt.Fprintln(w, e.ItemID)
		}
	}
	return nil
}

// FormatBackends outputs only workspace names, one per line.
func (f *IDOnlyFormatter) FormatBackends(w io.Writer, statuses []BackendStatus) error {
	for _, s := range statuses {
		fmt.Fprintln(w, s.Workspace)
	}
	return nil
}

// FormatConfig outputs only configured sync pair names, one per line.
func (f *IDOnlyFormatter) FormatConfig(w io.Writer, cfg *config.Config) error {
	for name := range cfg.SyncPairs {
		fmt.Fprintln(w, name)
	}
	return nil
}

// FormatError outputs an error message (errors are always shown).
func (f *IDOnlyFormatter) FormatError(w io.Writer, message string) error {
	fmt.Fprintf(w, "error: %s\n", message)
	return nil
}
