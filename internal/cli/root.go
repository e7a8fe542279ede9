package cli

import (
	"fmt"
	"os"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	format  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "Synchronize tasks across task-management backends",
	Long: `tasksync tracks tasks across local files, GitHub Issues, and Linear and
keeps them in sync using one-way, two-way, or n-way reconciliation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := config.Init(cfgFile); err != nil {
			return ConfigError(fmt.Sprintf("failed to load configuration: %v", err))
		}
		if format == "" {
			format = config.Get().Defaults.Format
		}
		return nil
	},
}

// Execute runs the root command and returns the error it produced, if any,
// for the caller to translate into a process exit code via GetExitCode.
func Execute() error {
	return rootCmd.Execute()
}

// GetFormat returns the effective --format value, falling back to table.
func GetFormat() string {
	if format == "" {
		return "table"
	}
	return format
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: .tasksync/config.yaml or ~/.config/tasksync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "output format: table, json, plain, id-only")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress as the run proceeds")
}

// PrintError writes err to stderr in a single line, unwrapping ExitCodeError
// to show only its message when present.
func PrintError(err error) {
	if exitErr, ok := err.(*ExitCodeError); ok {
		fmt.Fprintf(os.Stderr, "error: %s\n", exitErr.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
