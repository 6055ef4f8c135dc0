// Package fetch downloads and extracts a set of locked distributions with
// a bounded worker pool and progress reporting. Grounded on
// xe/src/internal/engine/install.go's worker-pool+semaphore download loop
// and xe/src/internal/resolver/resolver.go's DownloadParallel pterm
// multi-spinner usage, both folded into one component and the hand-rolled
// channel/semaphore replaced with github.com/sourcegraph/conc/pool.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codeclysm/extract/v3"
	"github.com/pterm/pterm"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/lockfile"
	"github.com/pkgctl/pkgctl/src/internal/planner"
	"github.com/pkgctl/pkgctl/src/internal/telemetry"
)

// HashPolicy controls how archive digests are verified.
type HashPolicy int

const (
	HashPolicyNone HashPolicy = iota
	HashPolicyGenerate
	HashPolicyVerify
	HashPolicyRequire
)

// Request is one package to fetch and extract.
type Request struct {
	Package lockfile.LockedPackage
	Dest    string // extraction root for this package
}

// Options configures a fetch run.
type Options struct {
	Concurrency int
	HashPolicy  HashPolicy
	ShowSpinner bool
}

// Result reports the outcome for one requested package.
type Result struct {
	Name string
	Err  error
}

// Run downloads and extracts every request, bounded by opts.Concurrency
// (0 defaults to 16), reporting errors per package rather than aborting
// the whole batch on the first failure.
func Run(ctx context.Context, db *distdb.DB, reqs []Request, opts Options) []Result {
	done := telemetry.StartSpan("fetch.run", "packages", len(reqs))
	defer done("status", "ok")

	n := opts.Concurrency
	if n <= 0 {
		n = 16
	}

	var multi pterm.MultiPrinter
	if opts.ShowSpinner {
		multi = pterm.DefaultMultiPrinter
		multi.Start()
		defer multi.Stop()
	}

	results := make([]Result, len(reqs))
	p := pool.New().WithMaxGoroutines(n)
	for i, req := range reqs {
		i, req := i, req
		var spinner *pterm.SpinnerPrinter
		if opts.ShowSpinner {
			spinner, _ = pterm.DefaultSpinner.WithWriter(multi.NewWriter()).
				WithText(fmt.Sprintf("Fetching %s (%s)...", req.Package.Name, req.Package.Version)).Start()
		}
		p.Go(func() {
			err := fetchOne(ctx, db, req, opts.HashPolicy)
			results[i] = Result{Name: req.Package.Name, Err: err}
			if spinner == nil {
				return
			}
			if err != nil {
				spinner.Fail(fmt.Sprintf("%s: %v", req.Package.Name, err))
			} else {
				spinner.Success(fmt.Sprintf("%s (%s)", req.Package.Name, req.Package.Version))
			}
		})
	}
	p.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func fetchOne(ctx context.Context, db *distdb.DB, req Request, policy HashPolicy) error {
	dist, err := distributionOf(req.Package)
	if err != nil {
		return err
	}
	if policy == HashPolicyRequire && dist.SHA256 == "" && dist.Kind.IsWheelKind() {
		return fmt.Errorf("fetch: digest required but none recorded for %s", req.Package.Name)
	}

	if err := os.MkdirAll(req.Dest, 0o755); err != nil {
		return err
	}

	switch dist.Kind {
	case distdb.KindGit:
		return cloneGit(ctx, dist, req.Dest)
	case distdb.KindPath:
		return copyLocalPath(dist.LocalDir, req.Dest)
	default:
		return fetchAndExtractArchive(ctx, db, dist, req)
	}
}

func fetchAndExtractArchive(ctx context.Context, db *distdb.DB, dist distdb.Distribution, req Request) error {
	blobPath, err := db.FetchArchive(ctx, dist)
	if err != nil {
		return err
	}

	f, err := os.Open(blobPath)
	if err != nil {
		return err
	}
	defer f.Close()

	bar := progressbar.DefaultBytes(-1, "extracting "+req.Package.Name)
	defer bar.Close()

	if err := extract.Archive(ctx, f, req.Dest, renameFunc()); err != nil {
		return fmt.Errorf("extract %s: %w", req.Package.Name, err)
	}
	_ = bar.Add(1)
	return preservePermissions(req.Dest)
}

// renameFunc guards against zip-slip style path escapes: codeclysm/extract
// already cleans paths relative to the destination, but an explicit guard
// here costs nothing and fails loudly instead of silently clamping.
func renameFunc() func(string) string {
	return func(name string) string {
		cleaned := filepath.Clean(name)
		if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
			return ""
		}
		return cleaned
	}
}

// preservePermissions re-asserts the executable bit on any file under
// root whose name suggests it is a script or binary (the .data/scripts
// wheel directory, or any file in a bin/ subtree); zip/tar entries with a
// zero mode would otherwise lose their executable bit on extraction.
func preservePermissions(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.Contains(path, string(filepath.Separator)+"scripts"+string(filepath.Separator)) ||
			strings.Contains(path, string(filepath.Separator)+"bin"+string(filepath.Separator)) {
			return os.Chmod(path, 0o755)
		}
		return nil
	})
}

func distributionOf(pkg lockfile.LockedPackage) (distdb.Distribution, error) {
	switch planner.DistributionKindOf(pkg) {
	case distdb.KindRegistryWheel:
		if len(pkg.Wheels) == 0 {
			return distdb.Distribution{}, fmt.Errorf("fetch: %s has no wheel entry", pkg.Name)
		}
		return distdb.Distribution{
			ID: pkg.Name + "@" + pkg.Version, Name: pkg.Name, Version: pkg.Version,
			Kind: distdb.KindRegistryWheel, URL: pkg.Wheels[0].URL, SHA256: digestOf(pkg.Wheels[0].Hash),
		}, nil
	case distdb.KindGit:
		return distdb.Distribution{ID: pkg.Name + "@" + pkg.Source.GitURL, Name: pkg.Name, Kind: distdb.KindGit, GitURL: pkg.Source.GitURL, GitRef: pkg.Source.GitRef}, nil
	case distdb.KindPath:
		return distdb.Distribution{ID: pkg.Name + "@" + pkg.Source.Path, Name: pkg.Name, Kind: distdb.KindPath, LocalDir: pkg.Source.Path, Editable: pkg.Source.Editable}, nil
	default:
		if pkg.Sdist == nil {
			return distdb.Distribution{}, fmt.Errorf("fetch: %s has no sdist entry", pkg.Name)
		}
		return distdb.Distribution{
			ID: pkg.Name + "@" + pkg.Version, Name: pkg.Name, Version: pkg.Version,
			Kind: distdb.KindRegistrySdist, URL: pkg.Sdist.URL, SHA256: digestOf(pkg.Sdist.Hash),
		}, nil
	}
}

func digestOf(hash string) string {
	_, hex, ok := strings.Cut(hash, ":")
	if !ok {
		return hash
	}
	return hex
}
