package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkgctl/pkgctl/src/internal/planner"
	"github.com/pkgctl/pkgctl/src/internal/project"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages from the active pkgctl environment",
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		installed, _, err := scanActiveEnvironment(wd)
		if err != nil {
			pterm.Error.Printf("Failed to scan environment: %v\n", err)
			return
		}
		names := make([]string, 0, len(installed))
		for n := range installed {
			names = append(names, n)
		}
		sort.Strings(names)
		data := pterm.TableData{{"Package", "Version"}}
		for _, n := range names {
			data = append(data, []string{installed[n].Name, installed[n].Version})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var checkCmd = &cobra.Command{
	Use:     "check <package_name>",
	Aliases: []string{"show"},
	Short:   "Show an installed package's metadata",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		installed, _, err := scanActiveEnvironment(wd)
		if err != nil {
			pterm.Error.Printf("Failed to scan environment: %v\n", err)
			return
		}
		pkg, ok := installed[project.NormalizeDepName(args[0])]
		if !ok {
			pterm.Error.Printf("%s is not installed\n", args[0])
			return
		}
		fmt.Printf("Name: %s\n", pkg.Name)
		fmt.Printf("Version: %s\n", pkg.Version)
		fmt.Printf("Location: %s\n", pkg.DistInfoDir)
		if len(pkg.RequiresDist) > 0 {
			fmt.Printf("Requires: %s\n", strings.Join(pkg.RequiresDist, ", "))
		}
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <package_name>...",
	Short: "Remove one or more packages from the active pkgctl environment",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		cfg, tomlPath, err := project.LoadOrCreate(wd)
		if err != nil {
			pterm.Error.Printf("Failed to load project: %v\n", err)
			return
		}
		eng, err := newProjectEngine(cfg)
		if err != nil {
			pterm.Error.Printf("Failed to init engine: %v\n", err)
			return
		}
		rt, changed, err := ensureRuntimeForProject(wd, &cfg)
		if err != nil {
			pterm.Error.Printf("Failed to prepare runtime: %v\n", err)
			return
		}
		if changed {
			_ = project.Save(tomlPath, cfg)
		}
		env := environmentFor(rt)

		if len(args) == 1 && strings.EqualFold(args[0], "all") {
			installed, err := planner.ScanSitePackages(env.SitePackages)
			if err != nil {
				pterm.Error.Printf("Failed to scan environment: %v\n", err)
				return
			}
			names := make([]string, 0, len(installed))
			for n, pkg := range installed {
				if n == "pip" || n == "setuptools" || n == "wheel" {
					continue
				}
				names = append(names, pkg.Name)
			}
			removed, err := eng.Uninstall(env, names)
			if err != nil {
				pterm.Error.Printf("Failed to remove all packages: %v\n", err)
				return
			}
			cfg.Deps = map[string]string{}
			if err := project.Save(tomlPath, cfg); err != nil {
				pterm.Warning.Printf("Packages removed but failed to update project config: %v\n", err)
			}
			pterm.Success.Printf("Removed %d package(s) from active environment\n", removed)
			return
		}

		reqNames := make([]string, 0, len(args))
		for _, raw := range args {
			if n := requirementToDepName(raw); n != "" {
				reqNames = append(reqNames, n)
			}
		}
		if len(reqNames) == 0 {
			pterm.Error.Println("No valid package names provided")
			return
		}
		removed, err := eng.Uninstall(env, reqNames)
		if err != nil {
			pterm.Error.Printf("Failed to remove packages: %v\n", err)
			return
		}
		for _, n := range reqNames {
			delete(cfg.Deps, n)
		}
		if err := project.Save(tomlPath, cfg); err != nil {
			pterm.Warning.Printf("Removed packages but failed to update project config: %v\n", err)
		}
		pterm.Success.Printf("Removed %d package(s)\n", removed)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(removeCmd)
}
