package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkgctl/pkgctl/src/internal/planner"
	"github.com/pkgctl/pkgctl/src/internal/project"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func scanActiveEnvironment(wd string) (map[string]planner.Installed, *RuntimeSelection, error) {
	cfg, tomlPath, err := project.LoadOrCreate(wd)
	if err != nil {
		return nil, nil, err
	}
	rt, changed, err := ensureRuntimeForProject(wd, &cfg)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		_ = project.Save(tomlPath, cfg)
	}
	installed, err := planner.ScanSitePackages(rt.SitePackages)
	if err != nil {
		return nil, rt, err
	}
	return installed, rt, nil
}

var whyCmd = &cobra.Command{
	Use:   "why <package_name>",
	Short: "Show which installed packages depend on a package",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		installed, _, err := scanActiveEnvironment(wd)
		if err != nil {
			pterm.Error.Printf("Failed to scan environment: %v\n", err)
			return
		}
		target := project.NormalizeDepName(args[0])
		if _, ok := installed[target]; !ok {
			pterm.Warning.Printf("%s is not installed\n", args[0])
			return
		}
		found := false
		for name, pkg := range installed {
			for _, req := range pkg.RequiresDist {
				if project.NormalizeDepName(firstToken(req)) == target {
					fmt.Printf("%s (%s) requires %s\n", name, pkg.Version, req)
					found = true
				}
			}
		}
		if !found {
			fmt.Printf("%s is a top-level requirement; nothing installed depends on it\n", args[0])
		}
	},
}

func firstToken(req string) string {
	for i, c := range req {
		switch c {
		case '[', '=', '<', '>', '!', '~', ' ', ';':
			return req[:i]
		}
	}
	return req
}

var treeCmd = &cobra.Command{
	Use:   "tree [package_name]",
	Short: "Show the installed dependency tree",
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		installed, _, err := scanActiveEnvironment(wd)
		if err != nil {
			pterm.Error.Printf("Failed to scan environment: %v\n", err)
			return
		}
		if len(installed) == 0 {
			fmt.Println("(no packages installed)")
			return
		}
		roots := make([]string, 0, len(installed))
		if len(args) == 1 {
			key := project.NormalizeDepName(args[0])
			if _, ok := installed[key]; !ok {
				pterm.Warning.Printf("%s is not installed\n", args[0])
				return
			}
			roots = []string{key}
		} else {
			depended := map[string]bool{}
			for _, pkg := range installed {
				for _, req := range pkg.RequiresDist {
					depended[project.NormalizeDepName(firstToken(req))] = true
				}
			}
			for name := range installed {
				if !depended[name] {
					roots = append(roots, name)
				}
			}
		}
		seen := map[string]bool{}
		for _, r := range roots {
			printTreeNode(installed, r, 0, seen)
		}
	},
}

func printTreeNode(installed map[string]planner.Installed, name string, depth int, seen map[string]bool) {
	pkg, ok := installed[name]
	if !ok {
		return
	}
	fmt.Printf("%s%s (%s)\n", strings.Repeat("  ", depth), pkg.Name, pkg.Version)
	if seen[name] {
		return // cycle guard: already expanded this package once on this path
	}
	seen[name] = true
	for _, req := range pkg.RequiresDist {
		dep := project.NormalizeDepName(firstToken(req))
		if _, ok := installed[dep]; ok {
			printTreeNode(installed, dep, depth+1, seen)
		}
	}
	delete(seen, name)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the active environment for missing dependencies",
	Run: func(cmd *cobra.Command, args []string) {
		wd, _ := os.Getwd()
		installed, _, err := scanActiveEnvironment(wd)
		if err != nil {
			pterm.Error.Printf("Failed to scan environment: %v\n", err)
			return
		}
		issues := planner.Check(installed)
		if len(issues) == 0 {
			pterm.Success.Printf("No broken requirements found across %d installed package(s)\n", len(installed))
			return
		}
		for _, issue := range issues {
			pterm.Warning.Printf("%s: %s\n", issue.Package, issue.Problem)
		}
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(whyCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(doctorCmd)
}
