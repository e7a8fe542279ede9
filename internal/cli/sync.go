package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync [sync-pair]",
	Short: "Reconcile tasks across a configured sync pair's backends",
	Long: `sync runs one pass of the sync pair's configured engine (one-way, two-way,
or n-way), detecting changes since the last run and propagating them across
every participating backend.

If sync-pair is omitted, the default sync pair from defaults.sync_pair (or
the lone configured pair) is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return runSync(name, syncDryRun)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "detect and report changes without writing them")
	rootCmd.AddCommand(syncCmd)
}

func runSync(name string, dryRun bool) error {
	rp, err := resolveSyncPair(name)
	if err != nil {
		return err
	}
	defer rp.close()

	cfg, err := rp.engineConfig(dryRun)
	if err != nil {
		return err
	}

	eng, err := buildEngine(rp, cfg)
	if err != nil {
		return err
	}

	result, runErr := runEngine(eng)
	if result == nil {
		return runErr
	}
	if printErr := printResult(result); printErr != nil {
		return WrapError("print result", printErr)
	}
	if runErr != nil {
		return runErr
	}
	if verbose {
		fmt.Printf("sync pair %q: done\n", rp.name)
	}
	return nil
}
