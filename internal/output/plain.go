package output

import (
	"fmt"
	"io"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

// PlainFormatter outputs data in plain, tab-separated text suitable for
// scripting.
type PlainFormatter struct{}

// FormatResult outputs the result of a sync or status run in plain format:
// one summary line of tab-separated counters, followed by one line per
// error.
func (f *PlainFormatter) FormatResult(w io.Writer, result *syncengine.Result) error {
	s := result.Stats
	fmt.Fprintf(w, "%t\t%d\t%d\t%d\t%d\t%d\t%d\n",
		result.Success, s.ItemsChecked, s.ItemsCreated, s.ItemsUpdated, s.ItemsDeleted, s.ItemsSkipped, s.ConflictsDetected)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, e.Backend, e.Message)
	}
	return nil
}

// FormatBackends outputs a connectivity report in plain format.
func (f *PlainFormatter) FormatBackends(w io.Writer, statuses []BackendStatus) error {
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", s.Workspace, s.Kind, s.OK, s.TaskCount)
	}
	return nil
}

// FormatConfig outputs configuration in plain format.
func (f *PlainFormatter) FormatConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", cfg.Version, cfg.Defaults.SyncPair, len(cfg.Workspaces), len(cfg.SyncPairs))
	return nil
}

// FormatError outputs an error in plain format.
func (f *PlainFormatter) FormatError(w io.Writer, message string) error {
	fmt.Fprintf(w, "error: %s\n", message)
	return nil
}
