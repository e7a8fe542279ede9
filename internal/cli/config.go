package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/credentials"
	"github.com/alexbrand/tasksync/internal/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage tasksync configuration: workspaces, sync pairs, and credentials.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long:  `Display the current configuration in YAML format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive configuration setup",
	Long: `Interactively set up a tasksync configuration: two workspaces and a sync
pair connecting them.

The configuration is saved to .tasksync/config.yaml when that file already
exists in the current directory, and to ~/.config/tasksync/config.yaml
otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow() error {
	cfg := config.Get()
	if cfg == nil {
		return ConfigError("no configuration loaded")
	}

	if GetFormat() == "json" {
		formatter := output.New(output.FormatJSON)
		return formatter.FormatConfig(os.Stdout, cfg)
	}

	outYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return WrapError("failed to format configuration", err)
	}
	fmt.Print(string(outYAML))
	return nil
}

func runConfigInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("tasksync Configuration Setup")
	fmt.Println("============================")
	fmt.Println()

	workspaces := map[string]any{}

	first, firstName, err := promptWorkspace(reader, "first")
	if err != nil {
		return err
	}
	workspaces[firstName] = first

	second, secondName, err := promptWorkspace(reader, "second")
	if err != nil {
		return err
	}
	workspaces[secondName] = second

	fmt.Println()
	fmt.Print("Sync pair name [main]: ")
	pairName, _ := reader.ReadString('\n')
	pairName = strings.TrimSpace(pairName)
	if pairName == "" {
		pairName = "main"
	}

	fmt.Println()
	fmt.Println("Direction:")
	fmt.Println("  1. one-way (first -> second)")
	fmt.Println("  2. two-way")
	fmt.Print("Choose direction [2]: ")
	dirChoice, _ := reader.ReadString('\n')
	dirChoice = strings.TrimSpace(dirChoice)
	direction := "two-way"
	if dirChoice == "1" || dirChoice == "one-way" {
		direction = "one-way"
	}

	cfg := map[string]any{
		"version": 1,
		"defaults": map[string]any{
			"format":    "table",
			"sync_pair": pairName,
		},
		"workspaces": workspaces,
		"sync_pairs": map[string]any{
			pairName: map[string]any{
				"workspaces":        []string{firstName, secondName},
				"direction":         direction,
				"conflict_strategy": "last-write-wins",
			},
		},
	}

	configPath := ".tasksync/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return WrapExitCodeError(ExitConfigError, "failed to determine config path", err)
		}
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return WrapExitCodeError(ExitConfigError, "failed to create config directory", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("\nConfiguration file already exists at %s\n", configPath)
		fmt.Print("Overwrite? [y/N]: ")
		confirm, _ := reader.ReadString('\n')
		confirm = strings.TrimSpace(strings.ToLower(confirm))
		if confirm != "y" && confirm != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return WrapError("failed to format configuration", err)
	}
	if err := os.WriteFile(configPath, out, 0644); err != nil {
		return WrapExitCodeError(ExitConfigError, "failed to write configuration", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return nil
}

// promptWorkspace interactively configures one workspace entry, labeled
// ordinal ("first"/"second") in prompts.
func promptWorkspace(reader *bufio.Reader, ordinal string) (map[string]any, string, error) {
	fmt.Printf("%s workspace name: ", strings.ToUpper(ordinal[:1])+ordinal[1:])
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ConfigError(fmt.Sprintf("%s workspace name is required", ordinal))
	}

	fmt.Println()
	fmt.Println("Available backends:")
	fmt.Println("  1. local  - Local filesystem")
	fmt.Println("  2. github - GitHub Issues")
	fmt.Println("  3. linear - Linear")
	fmt.Print("Choose backend [1]: ")
	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)

	ws := map[string]any{}
	switch choice {
	case "", "1", "local":
		ws["backend"] = "local"
		fmt.Print("Path [.tasksync/tasks]: ")
		path, _ := reader.ReadString('\n')
		path = strings.TrimSpace(path)
		if path == "" {
			path = ".tasksync/tasks"
		}
		ws["path"] = path
	case "2", "github":
		ws["backend"] = "github"
		fmt.Print("Repository (owner/repo): ")
		repo, _ := reader.ReadString('\n')
		repo = strings.TrimSpace(repo)
		if repo == "" {
			return nil, "", ConfigError("repository is required")
		}
		ws["repo"] = repo
		if _, err := credentials.GetGitHubToken(); err != nil {
			fmt.Println("GitHub token not found; set GITHUB_TOKEN or add it to credentials.yaml before syncing.")
		}
	case "3", "linear":
		ws["backend"] = "linear"
		fmt.Print("Team key: ")
		team, _ := reader.ReadString('\n')
		team = strings.TrimSpace(team)
		ws["team"] = team
		if _, err := credentials.GetLinearAPIKey(); err != nil {
			fmt.Println("Linear API key not found; set LINEAR_API_KEY or add it to credentials.yaml before syncing.")
		}
	default:
		return nil, "", ConfigError(fmt.Sprintf("unknown backend choice: %s", choice))
	}

	fmt.Println()
	return ws, name, nil
}
