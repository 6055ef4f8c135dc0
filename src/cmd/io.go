package cmd

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkgctl/pkgctl/src/internal/project"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <path_to_config>",
	Short: "Import dependencies from a pkgctl.toml or requirements.txt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		pterm.Info.Printf("Importing from %s...\n", path)

		wd, _ := os.Getwd()
		localCfg, localTomlPath, err := project.LoadOrCreate(wd)
		if err != nil {
			pterm.Error.Printf("Failed to load local pkgctl.toml: %v\n", err)
			return
		}
		eng, err := newProjectEngine(localCfg)
		if err != nil {
			pterm.Error.Printf("Failed to init engine: %v\n", err)
			return
		}
		runtimeSel, changed, err := ensureRuntimeForProject(wd, &localCfg)
		if err != nil {
			pterm.Error.Printf("Failed to prepare runtime: %v\n", err)
			return
		}
		if changed {
			_ = project.Save(localTomlPath, localCfg)
		}
		env := environmentFor(runtimeSel)

		if strings.HasSuffix(path, project.FileName) {
			cfg, err := project.Load(path)
			if err != nil {
				pterm.Error.Printf("Failed to read %s: %v\n", filepath.Base(path), err)
				return
			}
			if len(cfg.Deps) == 0 {
				pterm.Warning.Println("No dependencies found in [deps] section")
				return
			}
			reqs := cfg.RequirementStrings()
			for name := range cfg.Deps {
				localCfg.Deps[name] = cfg.Deps[name]
			}
			result, versions, err := resolveAndSync(context.Background(), eng, localCfg, reqs, env)
			if err != nil {
				pterm.Error.Printf("Import failed: %v\n", err)
				return
			}
			for name := range localCfg.Deps {
				if v, ok := versions[name]; ok {
					localCfg.Deps[name] = v
				}
			}
			if err := project.Save(localTomlPath, localCfg); err != nil {
				pterm.Warning.Printf("Imported but failed to update pkgctl.toml: %v\n", err)
			}
			pterm.Success.Printf("Imported %d dependencies into current project (installed %d)\n", len(reqs), result.Installed)
			return
		}

		if strings.HasSuffix(strings.ToLower(path), ".txt") {
			reqs, err := parseRequirements(path)
			if err != nil {
				pterm.Error.Printf("Failed to parse requirements file: %v\n", err)
				return
			}
			if len(reqs) == 0 {
				pterm.Warning.Println("No installable entries found in requirements file")
				return
			}
			for _, req := range reqs {
				if depName := requirementToDepName(req); depName != "" {
					localCfg.Deps[depName] = "*"
				}
			}
			result, versions, err := resolveAndSync(context.Background(), eng, localCfg, reqs, env)
			if err != nil {
				pterm.Error.Printf("Import failed: %v\n", err)
				return
			}
			for name := range localCfg.Deps {
				if v, ok := versions[name]; ok {
					localCfg.Deps[name] = v
				}
			}
			if err := project.Save(localTomlPath, localCfg); err != nil {
				pterm.Warning.Printf("Imported but failed to update pkgctl.toml: %v\n", err)
			}
			pterm.Success.Printf("Imported %d requirement(s) from requirements file (installed %d)\n", len(reqs), result.Installed)
		} else {
			pterm.Warning.Println("Import currently supports pkgctl.toml and requirements.txt")
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <output_path>",
	Short: "Export the resolved dependencies as a requirements.txt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		wd, _ := os.Getwd()
		cfg, _, err := project.LoadOrCreate(wd)
		if err != nil {
			pterm.Error.Printf("Failed to load project: %v\n", err)
			return
		}
		var sb strings.Builder
		for _, req := range cfg.RequirementStrings() {
			sb.WriteString(req)
			sb.WriteByte('\n')
		}
		if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
			pterm.Error.Printf("Failed to export: %v\n", err)
			return
		}
		pterm.Success.Printf("Exported %d requirement(s) to %s\n", len(cfg.Deps), path)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

func parseRequirements(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reqs := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-r ") || strings.HasPrefix(line, "--requirement ") {
			continue
		}
		if strings.HasPrefix(line, "-") {
			continue
		}
		if idx := strings.Index(line, " #"); idx > -1 {
			line = strings.TrimSpace(line[:idx])
		}
		if line != "" {
			reqs = append(reqs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}
