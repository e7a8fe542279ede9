package cli

import "github.com/spf13/cobra"

var statusCmd = &cobra.Command{
	Use:   "status [sync-pair]",
	Short: "Show what a sync pair would change without applying it",
	Long: `status runs the configured sync pair's engine in dry-run mode: changes are
detected and conflicts evaluated, but nothing is written to any backend or to
the Sync-State Store.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return runSync(name, true)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
