package cli

import (
	"os"
	"sort"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/output"
	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List configured workspaces and check connectivity",
	Long: `backends lists every workspace in the configuration and probes each one with
a ListTasks call, reporting whether the backend is reachable and how many
tasks it currently holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackends()
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends() error {
	cfg := config.Get()
	if cfg == nil {
		return ConfigError("no configuration loaded")
	}

	names := make([]string, 0, len(cfg.Workspaces))
	for name := range cfg.Workspaces {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]output.BackendStatus, 0, len(names))
	for _, name := range names {
		ws := cfg.Workspaces[name]
		status := output.BackendStatus{Workspace: name, Kind: ws.Backend}

		b, err := config.BuildBackend(name, ws)
		if err != nil {
			status.Message = err.Error()
			statuses = append(statuses, status)
			continue
		}

		tasks, err := b.ListTasks()
		if err != nil {
			status.Message = err.Error()
		} else {
			status.OK = true
			status.TaskCount = len(tasks)
		}
		statuses = append(statuses, status)
	}

	formatter := output.New(output.Format(GetFormat()))
	return formatter.FormatBackends(os.Stdout, statuses)
}
