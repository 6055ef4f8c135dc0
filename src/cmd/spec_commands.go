package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkgctl/pkgctl/src/internal/engine"
	"github.com/pkgctl/pkgctl/src/internal/lockfile"
	"github.com/pkgctl/pkgctl/src/internal/project"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Exit codes per spec.md §7: 0 success, 1 resolution failure, 2 usage
// error, 3 environment/IO error.
const (
	exitOK          = 0
	exitResolution  = 1
	exitUsage       = 2
	exitEnvironment = 3
)

var installFlags commonFlags

var installCmd = &cobra.Command{
	Use:   "install <requirement>...",
	Short: "Resolve and install requirements into the active environment, without updating pkgctl.toml",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			pterm.Error.Printf("Failed to get cwd: %v\n", err)
			os.Exit(exitEnvironment)
		}
		cfg, tomlPath, err := project.LoadOrCreate(wd)
		if err != nil {
			pterm.Error.Printf("Failed to load pkgctl.toml: %v\n", err)
			os.Exit(exitEnvironment)
		}
		if installFlags.python != "" {
			cfg.Python.Version = installFlags.python
		}
		eng, err := installFlags.buildEngine(cfg)
		if err != nil {
			pterm.Error.Printf("Failed to init engine: %v\n", err)
			os.Exit(exitEnvironment)
		}
		runtimeSel, changed, err := ensureRuntimeForProject(wd, &cfg)
		if err != nil {
			pterm.Error.Printf("Failed to prepare runtime: %v\n", err)
			os.Exit(exitEnvironment)
		}
		if changed {
			_ = project.Save(tomlPath, cfg)
		}
		env := environmentFor(runtimeSel)

		ctx := context.Background()
		sol, err := eng.Resolve(ctx, args, installFlags.resolverOptions(cfg))
		if err != nil {
			pterm.Error.Printf("Resolution failed: %v\n", err)
			os.Exit(exitResolution)
		}
		target := lockfile.FromSolution(sol, args, cfg.Python.Version)
		result, err := eng.SyncFromLockfile(ctx, target, env, engine.SyncOptions{
			ResolverOptions: installFlags.resolverOptions(cfg),
			LinkMode:        installFlags.linkModeOrDefault(cfg.Settings.LinkMode),
			Concurrency:     8,
			ShowProgress:    true,
		})
		if err != nil {
			pterm.Error.Printf("Install failed: %v\n", err)
			os.Exit(exitEnvironment)
		}
		pterm.Success.Printf("Installed %d, reinstalled %d, removed %d, kept %d package(s)\n", result.Installed, result.Reinstalled, result.Removed, result.Kept)
	},
}

var resolveFlags commonFlags
var resolveOutputPath string

var resolveCmd = &cobra.Command{
	Use:   "resolve <requirement>...",
	Short: "Resolve requirements and print the result without installing",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		cfg, _, err := project.LoadOrCreate(wd)
		if err != nil {
			pterm.Error.Printf("Failed to load pkgctl.toml: %v\n", err)
			os.Exit(exitEnvironment)
		}
		if resolveFlags.python != "" {
			cfg.Python.Version = resolveFlags.python
		}
		eng, err := resolveFlags.buildEngine(cfg)
		if err != nil {
			pterm.Error.Printf("Failed to init engine: %v\n", err)
			os.Exit(exitEnvironment)
		}
		sol, err := eng.Resolve(context.Background(), args, resolveFlags.resolverOptions(cfg))
		if err != nil {
			pterm.Error.Printf("Resolution failed: %v\n", err)
			os.Exit(exitResolution)
		}
		if resolveOutputPath != "" {
			lf := lockfile.FromSolution(sol, args, cfg.Python.Version)
			if err := lf.Save(resolveOutputPath); err != nil {
				pterm.Error.Printf("Failed to write %s: %v\n", resolveOutputPath, err)
				os.Exit(exitEnvironment)
			}
			pterm.Success.Printf("Resolved %d package(s) to %s\n", len(lf.Packages), resolveOutputPath)
			return
		}
		for _, pkg := range sol.Packages {
			fmt.Printf("%s==%s\n", pkg.Name.Normalized(), pkg.Version.String())
		}
	},
}

func init() {
	registerCommonFlags(installCmd, &installFlags)
	registerCommonFlags(resolveCmd, &resolveFlags)
	resolveCmd.Flags().StringVarP(&resolveOutputPath, "output-file", "o", "", "write the resolution as a lockfile instead of printing it")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(resolveCmd)
}
