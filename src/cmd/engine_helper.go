package cmd

import (
	"context"
	"path/filepath"

	"github.com/pkgctl/pkgctl/src/internal/engine"
	"github.com/pkgctl/pkgctl/src/internal/index"
	"github.com/pkgctl/pkgctl/src/internal/installer"
	"github.com/pkgctl/pkgctl/src/internal/lockfile"
	"github.com/pkgctl/pkgctl/src/internal/project"
	"github.com/pkgctl/pkgctl/src/internal/resolver"
)

// newProjectEngine builds an Engine rooted at cfg's global cache directory,
// querying cfg's configured index plus any extra indexes and find-links.
func newProjectEngine(cfg project.Config) (*engine.Engine, error) {
	indexes := []index.Index{{Name: "default", URL: cfg.Index.URL}}
	for _, u := range cfg.Index.ExtraURLs {
		indexes = append(indexes, index.Index{Name: "extra", URL: u})
	}
	return engine.New(cfg.Cache.GlobalDir, indexes, cfg.Index.FindLinks)
}

// environmentFor derives the installer.Environment for a runtime selection:
// the venv/global Python root, not just its site-packages directory.
func environmentFor(sel *RuntimeSelection) installer.Environment {
	root := filepath.Dir(sel.ActivationPath)
	env := installer.NewEnvironment(root, sel.PythonExe)
	env.Scripts = sel.ActivationPath
	env.SitePackages = sel.SitePackages
	return env
}

func linkModeFor(cfg project.Config) installer.LinkMode {
	mode, err := installer.ParseLinkMode(cfg.Settings.LinkMode)
	if err != nil {
		return installer.LinkClone
	}
	return mode
}

// defaultResolverOptions builds resolver options for command paths that
// don't go through commonFlags (add/sync/lock): every already-recorded
// dependency version is pinned unless upgradeAll or upgradeNames relaxes
// it, so resolution stays stable across repeated runs.
func defaultResolverOptions(cfg project.Config, upgradeAll bool, upgradeNames []string) resolver.Options {
	return resolver.Options{
		Preferences: preferencesFromDeps(cfg.Deps, upgradeAll, upgradeNames),
	}
}

// lockfilePathFor is the conventional lockfile location for a project dir.
func lockfilePathFor(wd string) string {
	return filepath.Join(wd, "pkgctl.lock")
}

func defaultSyncOptions(cfg project.Config) engine.SyncOptions {
	return engine.SyncOptions{
		ResolverOptions: defaultResolverOptions(cfg, false, nil),
		LinkMode:        linkModeFor(cfg),
		Concurrency:     8,
		ShowProgress:    true,
	}
}

// resolveAndSync resolves reqs to a solution, derives a lockfile from it
// (pythonVersion is recorded but the lockfile is not persisted here), and
// syncs env to match. It returns the per-package versions the solver
// picked, keyed by normalized package name, for callers that pin deps.
func resolveAndSync(ctx context.Context, eng *engine.Engine, cfg project.Config, reqs []string, env installer.Environment) (*engine.SyncResult, map[string]string, error) {
	sol, err := eng.Resolve(ctx, reqs, defaultResolverOptions(cfg, false, nil))
	if err != nil {
		return nil, nil, err
	}
	target := lockfile.FromSolution(sol, reqs, cfg.Python.Version)
	result, err := eng.SyncFromLockfile(ctx, target, env, defaultSyncOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	versions := make(map[string]string, len(target.Packages))
	for _, p := range target.Packages {
		versions[p.Name] = p.Version
	}
	return result, versions, nil
}
