package cmd

import (
	"github.com/pkgctl/pkgctl/src/internal/engine"
	"github.com/pkgctl/pkgctl/src/internal/index"
	"github.com/pkgctl/pkgctl/src/internal/installer"
	"github.com/pkgctl/pkgctl/src/internal/model"
	"github.com/pkgctl/pkgctl/src/internal/project"
	"github.com/pkgctl/pkgctl/src/internal/resolver"

	"github.com/spf13/cobra"
)

// commonFlags mirrors spec.md §6's shared install/sync/resolve flag set.
type commonFlags struct {
	indexURL        string
	extraIndexURLs  []string
	findLinks       []string
	noBuild         bool
	noBinary        []string
	reinstall       bool
	upgrade         bool
	upgradePackages []string
	prerelease      string
	resolution      string
	linkMode        string
	offline         bool
	refresh         bool
	refreshPackages []string
	python          string
}

func registerCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVar(&f.indexURL, "index-url", "", "base URL of the package index to use")
	cmd.Flags().StringArrayVar(&f.extraIndexURLs, "extra-index-url", nil, "additional package index URL (repeatable)")
	cmd.Flags().StringArrayVar(&f.findLinks, "find-links", nil, "additional flat directory or URL of distribution files")
	cmd.Flags().BoolVar(&f.noBuild, "no-build", false, "never build source distributions, wheels only")
	cmd.Flags().StringArrayVar(&f.noBinary, "no-binary", nil, "package name(s) to build from source (accepted; has no effect)")
	cmd.Flags().BoolVar(&f.reinstall, "reinstall", false, "reinstall all packages (accepted; has no effect)")
	cmd.Flags().BoolVar(&f.upgrade, "upgrade", false, "allow upgrading already-installed packages")
	cmd.Flags().StringArrayVar(&f.upgradePackages, "upgrade-package", nil, "upgrade only this package (repeatable)")
	cmd.Flags().StringVar(&f.prerelease, "prerelease", "disallow", "prerelease handling: disallow, allow, if-necessary, explicit")
	cmd.Flags().StringVar(&f.resolution, "resolution", "highest", "resolution strategy: highest, lowest, lowest-direct")
	cmd.Flags().StringVar(&f.linkMode, "link-mode", "", "installation link mode: clone, copy, hardlink, symlink")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "disallow network access, serving only what is already cached")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass cache freshness for every package")
	cmd.Flags().StringArrayVar(&f.refreshPackages, "refresh-package", nil, "bypass cache freshness for this package (repeatable)")
	cmd.Flags().StringVar(&f.python, "python", "", "Python version requirement to target")
}

// preferencesFromDeps pins every dep in deps to its recorded version,
// except names in upgradeAll (pin everything relaxed) or upgradeNames
// (pin just those relaxed), so re-resolution stays stable unless the
// caller asked to upgrade. Deps recorded as "*" (never yet resolved)
// are never pinned.
func preferencesFromDeps(deps map[string]string, upgradeAll bool, upgradeNames []string) resolver.Preferences {
	upgraded := map[string]bool{}
	for _, n := range upgradeNames {
		upgraded[project.NormalizeDepName(n)] = true
	}
	pinned := map[string]model.Version{}
	if !upgradeAll {
		for name, v := range deps {
			norm := project.NormalizeDepName(name)
			if upgraded[norm] || v == "" || v == "*" {
				continue
			}
			if parsed, err := model.ParseVersion(v); err == nil {
				pinned[norm] = parsed
			}
		}
	}
	return resolver.Preferences{Pinned: pinned}
}

func parseResolutionStrategy(s string) resolver.ResolutionStrategy {
	switch s {
	case "lowest":
		return resolver.ResolutionLowest
	case "lowest-direct":
		return resolver.ResolutionLowestDirect
	default:
		return resolver.ResolutionHighest
	}
}

// buildEngine constructs an Engine from cfg, overridden by any of these
// flags the caller set explicitly.
func (f commonFlags) buildEngine(cfg project.Config) (*engine.Engine, error) {
	indexURL := f.indexURL
	if indexURL == "" {
		indexURL = cfg.Index.URL
	}
	indexes := []index.Index{{Name: "default", URL: indexURL}}
	extraURLs := f.extraIndexURLs
	if len(extraURLs) == 0 {
		extraURLs = cfg.Index.ExtraURLs
	}
	for _, u := range extraURLs {
		indexes = append(indexes, index.Index{Name: "extra", URL: u})
	}
	findLinks := f.findLinks
	if len(findLinks) == 0 {
		findLinks = cfg.Index.FindLinks
	}
	refreshSet := map[string]bool{}
	for _, n := range f.refreshPackages {
		refreshSet[project.NormalizeDepName(n)] = true
	}
	return engine.NewWithNetwork(cfg.Cache.GlobalDir, indexes, findLinks, engine.NetworkOptions{
		Offline:         f.offline,
		RefreshAll:      f.refresh,
		RefreshPackages: refreshSet,
	})
}

func (f commonFlags) resolverOptions(cfg project.Config) resolver.Options {
	policy := resolver.PrereleaseDisallow
	switch f.prerelease {
	case "allow":
		policy = resolver.PrereleaseAllow
	case "if-necessary":
		policy = resolver.PrereleaseIfNecessary
	}
	return resolver.Options{
		Prerelease: func(name model.PackageName) resolver.PrereleasePolicy {
			return policy
		},
		Resolution:  parseResolutionStrategy(f.resolution),
		Preferences: preferencesFromDeps(cfg.Deps, f.upgrade, f.upgradePackages),
	}
}

func (f commonFlags) linkModeOrDefault(cfgLinkMode string) installer.LinkMode {
	mode := f.linkMode
	if mode == "" {
		mode = cfgLinkMode
	}
	if mode == "" {
		mode = "clone"
	}
	m, err := installer.ParseLinkMode(mode)
	if err != nil {
		return installer.LinkClone
	}
	return m
}
