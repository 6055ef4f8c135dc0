// Package engine composes the index, resolver, lockfile, planner, fetch,
// and installer components into the top-level sync/install/resolve/lock
// operations. Grounded on xe/src/internal/engine/install.go's overall
// shape (telemetry-wrapped stages, a cache-backed resolve step feeding a
// bounded-concurrency download/extract step) generalized from its
// pip-shell-out resolve+install pair to the full pipeline of SPEC_FULL's
// §4.12.
package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/fetch"
	"github.com/pkgctl/pkgctl/src/internal/httpcache"
	"github.com/pkgctl/pkgctl/src/internal/index"
	"github.com/pkgctl/pkgctl/src/internal/installer"
	"github.com/pkgctl/pkgctl/src/internal/lockfile"
	"github.com/pkgctl/pkgctl/src/internal/model"
	"github.com/pkgctl/pkgctl/src/internal/planner"
	"github.com/pkgctl/pkgctl/src/internal/resolver"
	"github.com/pkgctl/pkgctl/src/internal/telemetry"
)

// BuildContext turns a downloaded sdist directory into a wheel directory.
// Invoking an actual PEP 517 build backend in a subprocess is explicitly
// an external collaborator's job; the engine only specifies the contract
// and ships a stub that reports the capability is unavailable.
type BuildContext interface {
	Build(ctx context.Context, sdistDir, scratchDir string) (wheelDir string, err error)
}

type noBuildContext struct{}

func (noBuildContext) Build(ctx context.Context, sdistDir, scratchDir string) (string, error) {
	return "", fmt.Errorf("build: no PEP 517 build backend configured; source distributions require an external build context")
}

// Engine wires together one cache root's worth of components.
type Engine struct {
	Store    *cachestore.Store
	HTTP     *httpcache.Client
	Index    *index.Client
	DistDB   *distdb.DB
	Resolver *resolver.Resolver
	Build    BuildContext

	CacheRoot string
}

// NetworkOptions configures an Engine's cache-revalidation behavior,
// surfacing the `--offline`/`--refresh`/`--refresh-package` CLI flags.
type NetworkOptions struct {
	Offline         bool
	RefreshAll      bool
	RefreshPackages map[string]bool
}

// New builds an Engine rooted at cacheDir, querying the given indexes.
func New(cacheDir string, indexes []index.Index, flatLinks []string) (*Engine, error) {
	return NewWithNetwork(cacheDir, indexes, flatLinks, NetworkOptions{})
}

// NewWithNetwork is New with explicit offline/refresh control.
func NewWithNetwork(cacheDir string, indexes []index.Index, flatLinks []string, net NetworkOptions) (*Engine, error) {
	store, err := cachestore.New(cacheDir)
	if err != nil {
		return nil, err
	}
	httpClient := httpcache.New(store)
	httpClient.Offline = net.Offline
	if net.RefreshAll || len(net.RefreshPackages) > 0 {
		httpClient.Refresh = func(bucket cachestore.Bucket, key string) bool {
			if net.RefreshAll {
				return true
			}
			return net.RefreshPackages[key]
		}
	}
	idx := &index.Client{HTTP: httpClient, Indexes: indexes, FlatLinks: flatLinks}
	db := distdb.New(store)
	return &Engine{
		Store:     store,
		HTTP:      httpClient,
		Index:     idx,
		DistDB:    db,
		Resolver:  resolver.New(idx, db),
		Build:     noBuildContext{},
		CacheRoot: cacheDir,
	}, nil
}

// Resolve parses and solves a set of requirement strings.
func (e *Engine) Resolve(ctx context.Context, reqs []string, opts resolver.Options) (*resolver.Solution, error) {
	done := telemetry.StartSpan("engine.resolve", "requirements", len(reqs))
	parsed, err := parseRequirements(reqs)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}
	sol, err := e.Resolver.Solve(ctx, parsed, opts)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}
	done("status", "ok", "packages", len(sol.Packages))
	return sol, nil
}

// Lock resolves reqs and writes the result as a lockfile at lockPath.
func (e *Engine) Lock(ctx context.Context, reqs []string, lockPath, pythonVersion string, opts resolver.Options) (*lockfile.Lockfile, error) {
	done := telemetry.StartSpan("engine.lock", "requirements", len(reqs))
	sol, err := e.Resolve(ctx, reqs, opts)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}
	lf := lockfile.FromSolution(sol, reqs, pythonVersion)
	if err := lf.Save(lockPath); err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}
	done("status", "ok", "packages", len(lf.Packages))
	return lf, nil
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	ResolverOptions resolver.Options
	LinkMode        installer.LinkMode
	HashPolicy      fetch.HashPolicy
	Concurrency     int
	ShowProgress    bool
}

// SyncResult reports what a sync operation did.
type SyncResult struct {
	Installed  int
	Reinstalled int
	Removed    int
	Kept       int
	Elapsed    time.Duration
}

// Sync makes env equal the resolution of reqs, per §4.12's 7-step
// procedure: parse, discover the interpreter (the caller supplies env,
// already resolved externally), a cheap plan against the current
// installation to short-circuit when every requirement is already
// satisfied, resolve the remainder, plan again against the full
// resolution, fetch the install set, and install it while removing
// anything extraneous.
func (e *Engine) Sync(ctx context.Context, reqs []string, env installer.Environment, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	done := telemetry.StartSpan("engine.sync", "requirements", len(reqs), "site_packages", env.SitePackages)

	parsed, err := parseRequirements(reqs)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}

	installed, err := planner.ScanSitePackages(env.SitePackages)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}

	if allDirectRequirementsSatisfied(installed, parsed) {
		done("status", "ok", "shortcut", true)
		return &SyncResult{Kept: len(installed), Elapsed: time.Since(start)}, nil
	}

	sol, err := e.Resolver.Solve(ctx, parsed, opts.ResolverOptions)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}

	target := lockfile.FromSolution(sol, reqs, "").FilterEnvironment(model.HostEnvironment())
	steps := planner.Plan(installed, target)

	result, err := e.applyPlan(ctx, steps, target, installed, env, opts)
	done("status", "ok", "installed", result.Installed, "removed", result.Removed, "elapsed", time.Since(start).String())
	result.Elapsed = time.Since(start)
	return result, err
}

// SyncFromLockfile makes env equal an already-produced lockfile, skipping
// resolution entirely; this is the `sync <file>` CLI surface.
func (e *Engine) SyncFromLockfile(ctx context.Context, target *lockfile.Lockfile, env installer.Environment, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	done := telemetry.StartSpan("engine.sync_lockfile", "packages", len(target.Packages))

	target = target.FilterEnvironment(model.HostEnvironment())

	installed, err := planner.ScanSitePackages(env.SitePackages)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, err
	}
	steps := planner.Plan(installed, target)
	result, err := e.applyPlan(ctx, steps, target, installed, env, opts)
	done("status", "ok", "installed", result.Installed, "removed", result.Removed)
	result.Elapsed = time.Since(start)
	return result, err
}

func (e *Engine) applyPlan(ctx context.Context, steps []planner.Step, target *lockfile.Lockfile, installed map[string]planner.Installed, env installer.Environment, opts SyncOptions) (*SyncResult, error) {
	result := &SyncResult{}

	byName := map[string]lockfile.LockedPackage{}
	for _, pkg := range target.Packages {
		byName[pkg.Name] = pkg
	}

	unpackRoot := filepath.Join(e.CacheRoot, "unpacked")
	var reqs []fetch.Request
	var wanted []lockfile.LockedPackage
	reinstalling := map[string]bool{}
	for _, s := range steps {
		switch s.Action {
		case planner.ActionKeep:
			result.Kept++
		case planner.ActionInstall, planner.ActionReinstall:
			pkg, ok := byName[s.Name]
			if !ok {
				continue
			}
			dest := filepath.Join(unpackRoot, pkg.Name+"-"+pkg.Version)
			reqs = append(reqs, fetch.Request{Package: pkg, Dest: dest})
			wanted = append(wanted, pkg)
			if s.Action == planner.ActionReinstall {
				reinstalling[pkg.Name] = true
			}
		case planner.ActionRemove:
			if inst, ok := installed[normalizeKey(s.Name)]; ok {
				if err := removeInstalled(env, inst); err != nil {
					return result, fmt.Errorf("removing %s: %w", s.Name, err)
				}
				result.Removed++
			}
		}
	}

	if len(reqs) == 0 {
		return result, nil
	}

	fetchResults := fetch.Run(ctx, e.DistDB, reqs, fetch.Options{
		Concurrency: opts.Concurrency, HashPolicy: opts.HashPolicy, ShowSpinner: opts.ShowProgress,
	})
	var installReqs []installer.Request
	for i, fr := range fetchResults {
		if fr.Err != nil {
			return result, fmt.Errorf("fetching %s: %w", fr.Name, fr.Err)
		}
		pkg := wanted[i]
		installReqs = append(installReqs, installer.Request{
			Name: pkg.Name, Version: pkg.Version, WheelDir: reqs[i].Dest,
		})
	}

	installResults := installer.Install(env, installReqs, installer.Options{Mode: opts.LinkMode, Concurrency: opts.Concurrency})
	for _, r := range installResults {
		if r.Err != nil {
			return result, fmt.Errorf("installing %s: %w", r.Name, r.Err)
		}
		if reinstalling[r.Name] {
			result.Reinstalled++
		} else {
			result.Installed++
		}
	}
	return result, nil
}

// Uninstall removes the named packages (normalized) from env, returning
// how many were actually found and removed.
func (e *Engine) Uninstall(env installer.Environment, names []string) (int, error) {
	installed, err := planner.ScanSitePackages(env.SitePackages)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		inst, ok := installed[normalizeKey(name)]
		if !ok {
			continue
		}
		if err := removeInstalled(env, inst); err != nil {
			return removed, fmt.Errorf("removing %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func removeInstalled(env installer.Environment, inst planner.Installed) error {
	recordPath := filepath.Join(inst.DistInfoDir, "RECORD")
	if f, err := os.Open(recordPath); err == nil {
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		rows, _ := r.ReadAll()
		f.Close()
		for _, row := range rows {
			if len(row) == 0 || row[0] == "" {
				continue
			}
			_ = os.Remove(filepath.Join(env.SitePackages, filepath.FromSlash(row[0])))
		}
	}
	return os.RemoveAll(inst.DistInfoDir)
}

func allDirectRequirementsSatisfied(installed map[string]planner.Installed, reqs []model.Requirement) bool {
	for _, r := range reqs {
		if r.SourceKind != model.SourceRegistry {
			// Direct URL/git/path requirements always need a fresh resolve:
			// there is no cheap way to tell whether an installed copy still
			// matches an arbitrary source reference.
			return false
		}
		inst, ok := installed[r.Name.Normalized()]
		if !ok {
			return false
		}
		v, err := model.ParseVersion(inst.Version)
		if err != nil || !r.Specifiers.Matches(v) {
			return false
		}
	}
	return true
}

func normalizeKey(name string) string {
	n, err := model.NewPackageName(name)
	if err != nil {
		return name
	}
	return n.Normalized()
}

func parseRequirements(reqs []string) ([]model.Requirement, error) {
	out := make([]model.Requirement, 0, len(reqs))
	for _, s := range reqs {
		r, err := model.ParseRequirement(s)
		if err != nil {
			return nil, fmt.Errorf("parsing requirement %q: %w", s, err)
		}
		out = append(out, r)
	}
	return out, nil
}
