// Package installer links an unpacked wheel into a virtual environment's
// site-packages, verifying and rewriting RECORD and generating entry-point
// launchers. Grounded on xe/src/internal/core/snapshot.go's archive/zip
// usage (reused here for the Windows launcher format) and on
// xe/src/internal/venv/manager.go's environment layout conventions
// (bin/Scripts, lib/Lib/site-packages).
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/pkgctl/pkgctl/src/internal/model"
)

// LinkMode selects how wheel files are placed into site-packages.
type LinkMode int

const (
	LinkClone LinkMode = iota
	LinkCopy
	LinkHardlink
	LinkSymlink
)

func ParseLinkMode(s string) (LinkMode, error) {
	switch s {
	case "clone":
		return LinkClone, nil
	case "copy":
		return LinkCopy, nil
	case "hardlink":
		return LinkHardlink, nil
	case "symlink":
		return LinkSymlink, nil
	default:
		return 0, fmt.Errorf("installer: unknown link mode %q", s)
	}
}

func (m LinkMode) String() string {
	switch m {
	case LinkClone:
		return "clone"
	case LinkCopy:
		return "copy"
	case LinkHardlink:
		return "hardlink"
	case LinkSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Environment describes the target venv's relevant directories.
type Environment struct {
	Root         string
	PythonExe    string
	SitePackages string
	Scripts      string
	Include      string
}

// NewEnvironment derives the standard POSIX/Windows layout under root,
// matching venv.VenvManager's per-platform path choices.
func NewEnvironment(root, pythonExe string) Environment {
	if runtime.GOOS == "windows" {
		return Environment{
			Root: root, PythonExe: pythonExe,
			SitePackages: filepath.Join(root, "Lib", "site-packages"),
			Scripts:      filepath.Join(root, "Scripts"),
			Include:      filepath.Join(root, "Include"),
		}
	}
	return Environment{
		Root: root, PythonExe: pythonExe,
		SitePackages: filepath.Join(root, "lib", "site-packages"),
		Scripts:      filepath.Join(root, "bin"),
		Include:      filepath.Join(root, "include"),
	}
}

// Request is one unpacked wheel directory to install.
type Request struct {
	Name      string
	Version   string
	WheelDir  string // directory containing the unpacked wheel contents
}

// Result reports the outcome of installing one wheel.
type Result struct {
	Name string
	Err  error
}

// Options configures an install run.
type Options struct {
	Mode        LinkMode
	Concurrency int
}

// Install links every request into env, independently and in parallel:
// each wheel owns disjoint destination paths so no cross-wheel locking is
// needed.
func Install(env Environment, reqs []Request, opts Options) []Result {
	n := opts.Concurrency
	if n <= 0 {
		n = 8
	}
	results := make([]Result, len(reqs))
	p := pool.New().WithMaxGoroutines(n)
	for i, req := range reqs {
		i, req := i, req
		p.Go(func() {
			err := InstallOne(env, req, opts.Mode)
			results[i] = Result{Name: req.Name, Err: err}
		})
	}
	p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// InstallOne performs steps 1-5 of the wheel install procedure for a single
// unpacked wheel directory.
func InstallOne(env Environment, req Request, mode LinkMode) error {
	distInfo, err := findDistInfo(req.WheelDir, req.Name, req.Version)
	if err != nil {
		return err
	}

	rec, err := readRecord(filepath.Join(req.WheelDir, distInfo, "RECORD"))
	if err != nil {
		return fmt.Errorf("installer: reading RECORD for %s: %w", req.Name, err)
	}
	if err := verifyRecord(req.WheelDir, rec); err != nil {
		return fmt.Errorf("installer: %w", err)
	}

	rootIsPurelib, err := readRootIsPurelib(filepath.Join(req.WheelDir, distInfo, "WHEEL"))
	if err != nil {
		return err
	}

	dataDir := strings.TrimSuffix(distInfo, ".dist-info") + ".data"

	if err := os.MkdirAll(env.SitePackages, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(env.Scripts, 0o755); err != nil {
		return err
	}

	installed, err := linkWheelTree(req.WheelDir, dataDir, env, mode, rootIsPurelib)
	if err != nil {
		return err
	}

	eps, err := parseEntryPoints(filepath.Join(req.WheelDir, distInfo, "entry_points.txt"))
	if err != nil {
		return err
	}
	for _, ep := range eps {
		path, err := writeLauncher(env, ep)
		if err != nil {
			return fmt.Errorf("installer: writing launcher %s: %w", ep.Name, err)
		}
		installed = append(installed, path)
	}

	recordPath := filepath.Join(env.SitePackages, distInfo, "RECORD")
	return rewriteRecord(env.SitePackages, recordPath, installed)
}

func findDistInfo(wheelDir, name, version string) (string, error) {
	entries, err := os.ReadDir(wheelDir)
	if err != nil {
		return "", err
	}
	want, err := model.NewPackageName(name)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".dist-info") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".dist-info")
		idx := strings.LastIndex(base, "-")
		if idx < 0 {
			continue
		}
		gotName := base[:idx]
		got, err := model.NewPackageName(gotName)
		if err != nil {
			continue
		}
		if got.Normalized() == want.Normalized() {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("installer: no .dist-info matching %s in %s", name, wheelDir)
}

// linkWheelTree places every file from the unpacked wheel into env,
// dispatching .data/{purelib,platlib,scripts,data,headers} members to their
// respective roots and everything else to env.SitePackages; the wheel's
// Root-Is-Purelib setting does not change where files go. Returns the
// absolute paths written, for RECORD rewriting.
func linkWheelTree(wheelDir, dataDirName string, env Environment, mode LinkMode, rootIsPurelib bool) ([]string, error) {
	var installed []string

	err := filepath.WalkDir(wheelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(wheelDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		var destRoot, destRel string
		switch {
		case strings.HasPrefix(rel, dataDirName+"/purelib/"):
			destRoot = env.SitePackages
			destRel = strings.TrimPrefix(rel, dataDirName+"/purelib/")
		case strings.HasPrefix(rel, dataDirName+"/platlib/"):
			destRoot = env.SitePackages
			destRel = strings.TrimPrefix(rel, dataDirName+"/platlib/")
		case strings.HasPrefix(rel, dataDirName+"/scripts/"):
			destRoot = env.Scripts
			destRel = strings.TrimPrefix(rel, dataDirName+"/scripts/")
		case strings.HasPrefix(rel, dataDirName+"/headers/"):
			destRoot = env.Include
			destRel = strings.TrimPrefix(rel, dataDirName+"/headers/")
		case strings.HasPrefix(rel, dataDirName+"/data/"):
			destRoot = env.Root
			destRel = strings.TrimPrefix(rel, dataDirName+"/data/")
		default:
			// Top-level file, outside .data: goes straight into site-packages
			// regardless of rootIsPurelib, since this installer targets a
			// single site-packages directory rather than separate purelib
			// and platlib trees.
			_ = rootIsPurelib
			destRoot = env.SitePackages
			destRel = rel
		}

		destPath := filepath.Join(destRoot, filepath.FromSlash(destRel))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		if err := placeFile(path, destPath, mode); err != nil {
			return err
		}
		if destRoot == env.Scripts {
			_ = os.Chmod(destPath, 0o755)
		}

		installed = append(installed, destPath)
		return nil
	})
	return installed, err
}
