package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkgctl/pkgctl/src/internal/project"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <package_name>...",
	Short: "Add one or more packages to the active pkgctl environment",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			pterm.Error.Printf("Failed to get cwd: %v\n", err)
			return
		}
		cfg, tomlPath, err := project.LoadOrCreate(wd)
		if err != nil {
			pterm.Error.Printf("Failed to load pkgctl.toml: %v\n", err)
			return
		}
		eng, err := newProjectEngine(cfg)
		if err != nil {
			pterm.Error.Printf("Failed to init engine: %v\n", err)
			return
		}

		runtimeSel, changed, err := ensureRuntimeForProject(wd, &cfg)
		if err != nil {
			pterm.Error.Printf("Failed to prepare runtime: %v\n", err)
			return
		}
		if changed {
			_ = project.Save(tomlPath, cfg)
		}

		target := "global"
		if runtimeSel.IsVenv {
			target = "venv:" + runtimeSel.VenvName
		}
		pterm.Info.Printf("Installing %d requirement(s) with Python %s [%s]...\n", len(args), cfg.Python.Version, target)

		for _, req := range args {
			if depName := requirementToDepName(req); depName != "" {
				cfg.Deps[depName] = "*"
			}
		}

		result, versions, err := resolveAndSync(context.Background(), eng, cfg, cfg.RequirementStrings(), environmentFor(runtimeSel))
		if err != nil {
			pterm.Error.Printf("Install failed: %v\n", err)
			return
		}
		for name := range cfg.Deps {
			if v, ok := versions[name]; ok {
				cfg.Deps[name] = v
			}
		}
		if err := project.Save(tomlPath, cfg); err != nil {
			pterm.Warning.Printf("Installed but failed to persist project config (%s): %v\n", filepath.Base(tomlPath), err)
			return
		}
		pterm.Success.Printf("Installed %d, reinstalled %d, removed %d, kept %d package(s)\n", result.Installed, result.Reinstalled, result.Removed, result.Kept)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
