// Package planner diffs an installed environment against a resolved
// lockfile into keep/reinstall/install/extraneous actions, and checks an
// environment's installed packages for requirements that name a package
// which is not installed ("pip check" semantics; installed versions are not
// checked against the requirement's specifier). Grounded on xe/src/internal/engine/install.go's
// isInstalledInSitePackages dist-info scan, generalized into a full index
// + diff; no ecosystem library applies to this pure diffing logic.
package planner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/lockfile"
)

// Installed describes one already-installed distribution, discovered by
// scanning a site-packages directory for `*.dist-info` folders.
type Installed struct {
	Name         string
	Version      string
	DistInfoDir  string
	RequiresDist []string
}

// ScanSitePackages indexes every `<name>-<version>.dist-info` directory
// under dir.
func ScanSitePackages(dir string) (map[string]Installed, error) {
	out := map[string]Installed{}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".dist-info") {
			continue
		}
		name, version := splitDistInfoName(strings.TrimSuffix(e.Name(), ".dist-info"))
		if name == "" {
			continue
		}
		metaPath := filepath.Join(dir, e.Name(), "METADATA")
		requires, _ := requiresDistFromMetadata(metaPath)
		key := normalize(name)
		out[key] = Installed{
			Name: key, Version: version,
			DistInfoDir:  filepath.Join(dir, e.Name()),
			RequiresDist: requires,
		}
	}
	return out, nil
}

func splitDistInfoName(base string) (name, version string) {
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return base, ""
	}
	return base[:idx], base[idx+1:]
}

func requiresDistFromMetadata(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if k, v, ok := strings.Cut(line, ": "); ok && k == "Requires-Dist" {
			out = append(out, v)
		}
	}
	return out, nil
}

func normalize(name string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !lastSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			lastSep = true
			continue
		}
		b.WriteRune(r)
		lastSep = false
	}
	return strings.Trim(b.String(), "-")
}

// Action is what must happen to one package to reach the target state.
type Action int

const (
	ActionKeep Action = iota
	ActionInstall
	ActionReinstall
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionInstall:
		return "install"
	case ActionReinstall:
		return "reinstall"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Step is one planned action, sorted by name for deterministic output.
type Step struct {
	Name    string
	Version string
	Action  Action
	Package *lockfile.LockedPackage // nil for ActionRemove
}

// Plan diffs installed against target, producing steps in deterministic
// (alphabetical by name) order.
func Plan(installed map[string]Installed, target *lockfile.Lockfile) []Step {
	wanted := map[string]*lockfile.LockedPackage{}
	for i := range target.Packages {
		wanted[target.Packages[i].Name] = &target.Packages[i]
	}

	var steps []Step
	for name, pkg := range wanted {
		cur, ok := installed[name]
		switch {
		case !ok:
			steps = append(steps, Step{Name: name, Version: pkg.Version, Action: ActionInstall, Package: pkg})
		case cur.Version != pkg.Version:
			steps = append(steps, Step{Name: name, Version: pkg.Version, Action: ActionReinstall, Package: pkg})
		default:
			steps = append(steps, Step{Name: name, Version: pkg.Version, Action: ActionKeep, Package: pkg})
		}
	}
	for name, cur := range installed {
		if _, ok := wanted[name]; !ok {
			steps = append(steps, Step{Name: name, Version: cur.Version, Action: ActionRemove})
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Name < steps[j].Name })
	return steps
}

// CheckIssue is one unmet or conflicting dependency found by Check.
type CheckIssue struct {
	Package string
	Problem string
}

// Check validates that every installed package's Requires-Dist is
// satisfied by some other installed package, mirroring `pip check`.
// It does not evaluate version specifiers (a full PEP 440 check would
// require parsing every requirement string here); it reports only
// missing requirements, which is the common real-world `pip check`
// failure mode.
func Check(installed map[string]Installed) []CheckIssue {
	var issues []CheckIssue
	names := make([]string, 0, len(installed))
	for n := range installed {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		pkg := installed[name]
		for _, req := range pkg.RequiresDist {
			depName := normalize(firstToken(req))
			if depName == "" {
				continue
			}
			if _, ok := installed[depName]; !ok {
				issues = append(issues, CheckIssue{
					Package: name,
					Problem: "requires " + req + " but it is not installed",
				})
			}
		}
	}
	return issues
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

// DistributionKindOf reports whether a locked package's primary artifact
// is a wheel, used by the installer to choose the extraction strategy.
func DistributionKindOf(pkg lockfile.LockedPackage) distdb.Kind {
	if len(pkg.Wheels) > 0 {
		return distdb.KindRegistryWheel
	}
	switch pkg.Source.Kind {
	case "git":
		return distdb.KindGit
	case "path":
		return distdb.KindPath
	case "direct":
		return distdb.KindDirectURLSdist
	default:
		return distdb.KindRegistrySdist
	}
}
