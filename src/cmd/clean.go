package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"github.com/pkgctl/pkgctl/src/internal/pyxdir"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var forceFlag bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all global and local state managed by pkgctl",
	Long: `Remove the global pkgctl data directory, self-installed Python runtimes,
and local project state (pkgctl.toml). WARNING: This operation is destructive.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !forceFlag {
			pterm.Warning.Println("This will delete all global and local pkgctl data, including:")
			fmt.Printf("- %s (config, cache, credentials, venvs)\n", pyxdir.MustHome())
			fmt.Println("- ~/AppData/Local/Programs/Python (self-installed runtimes)")
			fmt.Println("- pkgctl.toml in the current directory")
			fmt.Print("\nAre you sure you want to proceed? (y/N): ")

			reader := bufio.NewReader(os.Stdin)
			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(strings.ToLower(input))

			if input != "y" && input != "yes" {
				pterm.Info.Println("Cleanup cancelled.")
				return
			}
		}

		pterm.Info.Println("Starting system-wide cleanup...")

		// 1. Global pkgctl home
		home, _ := os.UserHomeDir()
		globalDir := pyxdir.MustHome()
		removePath(globalDir, "Global configuration and data")
		removePath(filepath.Join(home, ".xe"), "Legacy directory")
		removePath(filepath.Join(home, ".cache", "xe"), "Legacy CAS cache")

		// 2. Self-installed Pythons
		pythonDir := filepath.Join(home, "AppData", "Local", "Programs", "Python")
		removePath(pythonDir, "Self-installed Python runtimes")

		// 3. Local project files
		removePath("pkgctl.toml", "Local project configuration")

		pterm.Success.Println("Cleanup complete. All pkgctl-related data has been removed.")
	},
}

func removePath(path string, description string) {
	if _, err := os.Stat(path); err == nil {
		pterm.Info.Printf("Removing %s at %s...\n", description, path)
		if err := os.RemoveAll(path); err != nil {
			pterm.Error.Printf("Failed to remove %s: %v\n", path, err)
		}
	}
}

func init() {
	cleanCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Force cleanup without confirmation")
	rootCmd.AddCommand(cleanCmd)
}
