// Package lockfile serializes a resolved dependency graph to and from a
// stable TOML document. Grounded on xe/src/internal/lockfile/lockfile.go's
// Load/Save shape (BurntSushi/toml, file-based, no in-memory caching),
// extended from a flat `deps map[string]string` to the full per-package
// table spec.md §4.8/§8 requires: source kind, file digests, and
// dependency edges carrying their environment markers.
package lockfile

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/pkgctl/pkgctl/src/internal/model"
	"github.com/pkgctl/pkgctl/src/internal/resolver"
)

const FormatVersion = 1

// Lockfile is the on-disk reproducible resolution.
type Lockfile struct {
	Version      int             `toml:"version"`
	PythonVersion string         `toml:"python-version,omitempty"`
	Requires     []string        `toml:"requires"`
	Packages     []LockedPackage `toml:"package"`
}

// LockedPackage is one resolved distribution.
type LockedPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`

	// Marker is the PEP 508 marker expression under which this entry
	// applies, empty when the package resolved identically everywhere.
	// A name can appear more than once in Packages when resolution
	// forked on a marker disjunction; FilterEnvironment picks the one
	// entry per name that applies to a concrete environment.
	Marker string `toml:"marker,omitempty"`

	Source LockedSource `toml:"source"`

	Wheels []LockedFile `toml:"wheel,omitempty"`
	Sdist  *LockedFile  `toml:"sdist,omitempty"`

	Dependencies []LockedEdge `toml:"dependency,omitempty"`
}

// LockedSource records where a package's bytes came from.
type LockedSource struct {
	Kind string `toml:"kind"` // "registry", "direct", "git", "path"

	RegistryURL string `toml:"registry-url,omitempty"`

	DirectURL string `toml:"direct-url,omitempty"`

	GitURL    string `toml:"git-url,omitempty"`
	GitRef    string `toml:"git-ref,omitempty"`
	GitCommit string `toml:"git-commit,omitempty"`

	Path     string `toml:"path,omitempty"`
	Editable bool   `toml:"editable,omitempty"`
}

// LockedFile is one distribution archive plus its verification digest.
type LockedFile struct {
	Filename string `toml:"filename"`
	URL      string `toml:"url,omitempty"`
	Hash     string `toml:"hash,omitempty"` // "sha256:<hex>"
}

// LockedEdge is a dependency relationship preserved for `pip check` and
// for re-resolution-is-stable verification.
type LockedEdge struct {
	Name   string `toml:"name"`
	Marker string `toml:"marker,omitempty"`
	Extra  string `toml:"extra,omitempty"`
}

func Load(path string) (*Lockfile, error) {
	var lock Lockfile
	if _, err := toml.DecodeFile(path, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func (l *Lockfile) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(l)
}

// FromSolution converts a resolver.Solution into a stable Lockfile: package
// order and every nested slice are sorted so that re-resolving an
// unchanged requirement set reproduces byte-identical TOML.
func FromSolution(sol *resolver.Solution, requires []string, pythonVersion string) *Lockfile {
	lock := &Lockfile{
		Version:       FormatVersion,
		PythonVersion: pythonVersion,
		Requires:      append([]string(nil), requires...),
	}
	sort.Strings(lock.Requires)

	for _, pkg := range sol.Packages {
		lp := LockedPackage{
			Name:    pkg.Name.Normalized(),
			Version: pkg.Version.String(),
			Marker:  markerString(pkg.Environment),
			Source:  sourceFromDistribution(pkg),
		}
		if pkg.Dist.Kind.IsWheelKind() {
			lp.Wheels = append(lp.Wheels, fileFromDist(pkg))
		} else if pkg.Dist.URL != "" {
			lp.Sdist = &LockedFile{Filename: filenameFromURL(pkg.Dist.URL), URL: pkg.Dist.URL, Hash: hashField(pkg.Dist.SHA256)}
		}

		seen := map[string]bool{}
		for _, e := range pkg.Edges {
			extra := ""
			if len(e.Extras) > 0 {
				extra = e.Extras[0].Normalized()
			}
			key := e.From.Normalized() + "|" + extra + "|" + e.Marker.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			lp.Dependencies = append(lp.Dependencies, LockedEdge{
				Name:   e.From.Normalized(),
				Marker: markerString(e.Marker),
				Extra:  extra,
			})
		}
		sort.Slice(lp.Dependencies, func(i, j int) bool { return lp.Dependencies[i].Name < lp.Dependencies[j].Name })

		lock.Packages = append(lock.Packages, lp)
	}
	sort.Slice(lock.Packages, func(i, j int) bool { return lock.Packages[i].Name < lock.Packages[j].Name })
	return lock
}

// FilterEnvironment returns a copy of l keeping, for each package name, only
// the entry whose Marker is satisfied by env — resolving the duplicate
// entries a marker-forked resolve can produce down to the one applicable
// to a concrete install target. A package with no Marker (resolved the
// same way everywhere) always passes through unchanged.
func (l *Lockfile) FilterEnvironment(env map[model.MarkerVar]string) *Lockfile {
	out := &Lockfile{Version: l.Version, PythonVersion: l.PythonVersion, Requires: l.Requires}
	for _, pkg := range l.Packages {
		if pkg.Marker == "" {
			out.Packages = append(out.Packages, pkg)
			continue
		}
		m, err := model.ParseMarker(pkg.Marker)
		if err != nil || m.Restrict(env).IsTrue() {
			out.Packages = append(out.Packages, pkg)
		}
	}
	return out
}

func markerString(m model.MarkerTree) string {
	if m.IsTrue() {
		return ""
	}
	return m.String()
}

func hashField(sha256Hex string) string {
	if sha256Hex == "" {
		return ""
	}
	return "sha256:" + sha256Hex
}

func filenameFromURL(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}
