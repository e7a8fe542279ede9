package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

// TableFormatter outputs data in a human-readable table format.
type TableFormatter struct{}

// FormatResult outputs the result of a sync or status run.
func (f *TableFormatter) FormatResult(w io.Writer, result *syncengine.Result) error {
	verb := "Sync failed"
	if result.Success {
		verb = "Sync complete"
	}
	fmt.Fprintf(w, "%s (%s, %s): %dms\n", verb, result.Direction, joinBackends(result.Backends), result.DurationMs)

	s := result.Stats
	fmt.Fprintf(w, "  checked:   %d\n", s.ItemsChecked)
	fmt.Fprintf(w, "  created:   %d\n", s.ItemsCreated)
	fmt.Fprintf(w, "  updated:   %d\n", s.ItemsUpdated)
	fmt.Fprintf(w, "  deleted:   %d\n", s.ItemsDeleted)
	fmt.Fprintf(w, "  skipped:   %d\n", s.ItemsSkipped)
	if s.ConflictsDetected > 0 {
		fmt.Fprintf(w, "  conflicts: %d detected, %d resolved\n", s.ConflictsDetected, s.ConflictsResolved)
	}

	for _, e := range result.Errors {
		fmt.Fprintf(w, "  error [%s] %s: %s\n", e.Kind, e.Backend, e.Message)
	}
	return nil
}

func joinBackends(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "+"
		}
		out += id
	}
	return out
}

// FormatBackends outputs a connectivity report for configured workspaces.
func (f *TableFormatter) FormatBackends(w io.Writer, statuses []BackendStatus) error {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No workspaces configured.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKSPACE\tBACKEND\tSTATUS\tTASKS")
	for _, s := range statuses {
		status := "ok"
		if !s.OK {
			status = "error: " + s.Message
		}
		tasks := fmt.Sprintf("%d", s.TaskCount)
		if !s.OK {
			tasks = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Workspace, s.Kind, status, tasks)
	}
	return tw.Flush()
}

// FormatConfig outputs configuration.
func (f *TableFormatter) FormatConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Version: %d\n", cfg.Version)
	fmt.Fprintf(w, "  Default sync pair: %s\n", cfg.Defaults.SyncPair)
	fmt.Fprintf(w, "  Workspaces: %d\n", len(cfg.Workspaces))
	for name, ws := range cfg.Workspaces {
		fmt.Fprintf(w, "    %s: %s\n", name, ws.Backend)
	}
	fmt.Fprintf(w, "  Sync pairs: %d\n", len(cfg.SyncPairs))
	for name, sp := range cfg.SyncPairs {
		fmt.Fprintf(w, "    %s: %s (%s)\n", name, joinBackends(sp.Workspaces), sp.Direction)
	}
	return nil
}

// FormatError outputs an error message.
func (f *TableFormatter) FormatError(w io.Writer, message string) error {
	fmt.Fprintf(w, "error: %s\n", message)
	return nil
}
