// Package resolver performs a universal (environment-independent) resolve
// of a requirement set into one graph covering every platform/Python a
// marker expression could select. It works like PubGrub: a recursive
// search over package-version decisions that, on a conflict between an
// already-decided version and a newly discovered requirement, backjumps
// along a "required-by" blame chain to every ancestor decision that could
// plausibly fix it and lets each retry its next candidate in turn, rather
// than failing at the first contradiction; and that forks the search
// whenever a dependency's marker is true for only part of the current
// environment fork, producing two independent sub-searches (one per side
// of the marker) instead of collapsing to a single concrete platform.
// This falls short of full incompatibility-set learning — the blame
// chain is derived from the static requirer graph, not from a clause
// algebra over the specific constraints that conflicted — but it does
// backtrack over resolvable conflicts (including ones only an earlier
// decision can fix) and does fork on marker disjunction, per the
// end-to-end resolution procedure this package implements.
//
// Grounded on original_source/crates/uv-resolver/src/pubgrub/dependencies.rs
// for the shape of a dependency-graph walk producing per-package decisions,
// original_source/crates/uv-resolver/src/resolver/mod.rs for the
// fork-on-marker-disjunction idea, and on
// original_source/crates/uv-distribution-types/src/candidate_selector.rs
// for candidate ranking (wheel over sdist, resolution-strategy ordering,
// prerelease handling).
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/index"
	"github.com/pkgctl/pkgctl/src/internal/model"
	"github.com/pkgctl/pkgctl/src/internal/telemetry"
)

// Resolved is one decided package in the solution.
type Resolved struct {
	Name    model.PackageName
	Version model.Version
	Dist    distdb.Distribution
	Meta    distdb.Metadata

	// Environment is the marker expression under which this particular
	// version was chosen. MarkerTrue means it applies everywhere; when a
	// package resolves to different versions under disjoint markers (a
	// Windows-only dependency pinned differently than its POSIX
	// counterpart, say), Solution.Packages carries one Resolved per
	// (name, marker-set), each with its own Environment.
	Environment model.MarkerTree

	// Edges records why this package is present: each incoming
	// dependency edge, with the marker under which that edge applies.
	Edges []Edge
}

// Edge is one incoming dependency relationship.
type Edge struct {
	From   model.PackageName // zero value for a root requirement
	Marker model.MarkerTree
	Extras []model.Extra
}

// Solution is the final universal resolution.
type Solution struct {
	Packages []Resolved
}

// Preferences biases candidate selection toward already-known versions,
// e.g. from an existing lockfile, unless relaxed by `--upgrade` or
// `--upgrade-package`.
type Preferences struct {
	Pinned map[string]model.Version
}

// PrereleasePolicy controls whether a package's candidates may include
// prereleases.
type PrereleasePolicy int

const (
	PrereleaseDisallow PrereleasePolicy = iota
	PrereleaseAllow
	PrereleaseIfNecessary
)

// ResolutionStrategy controls which matching version candidatesFor prefers.
type ResolutionStrategy int

const (
	ResolutionHighest ResolutionStrategy = iota
	ResolutionLowest
	ResolutionLowestDirect // lowest for root requirements, highest for transitive ones
)

// Options configures one resolve.
type Options struct {
	Prerelease  func(name model.PackageName) PrereleasePolicy
	Resolution  ResolutionStrategy
	Env         map[model.MarkerVar]string // optional: narrow to one concrete environment instead of resolving universally
	Preferences Preferences
}

// Resolver resolves a set of root requirements into a Solution.
type Resolver struct {
	Index  *index.Client
	DistDB *distdb.DB
}

func New(idx *index.Client, db *distdb.DB) *Resolver {
	return &Resolver{Index: idx, DistDB: db}
}

// NoSolutionError reports that name could not be satisfied, with
// fuzzy-matched suggestions drawn from the packages already seen.
type NoSolutionError struct {
	Name        string
	Reason      string
	Suggestions []string
}

func (e *NoSolutionError) Error() string {
	msg := fmt.Sprintf("no solution found for %q: %s", e.Name, e.Reason)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

type pending struct {
	req    model.Requirement
	from   model.PackageName
	marker model.MarkerTree
	extras []model.Extra
	isRoot bool
}

// decisionNode is one package version chosen during a single fork's search.
type decisionNode struct {
	name        model.PackageName
	version     model.Version
	dist        distdb.Distribution
	meta        distdb.Metadata
	edges       []Edge
	constraints []model.VersionSpecifiers
	environment model.MarkerTree
}

func (n *decisionNode) toResolved() Resolved {
	return Resolved{
		Name: n.name, Version: n.version, Dist: n.dist, Meta: n.meta,
		Environment: n.environment, Edges: append([]Edge(nil), n.edges...),
	}
}

type searchState struct {
	decided map[string]*decisionNode
	order   []string

	// requiredBy records, for every package name ever seen, the set of
	// package names that have requested it. It is never cleared on
	// backtrack — which package requires which is a property of the
	// dependency graph, not of which version got picked — so it doubles
	// as a standing "blame chain" index: a conflict over one package
	// can implicate every ancestor that contributed a requirement
	// reaching it, letting their decision frames retry instead of just
	// the directly conflicting package's own frame.
	requiredBy map[string]map[string]bool
}

func (st *searchState) recordRequirer(key, from string) {
	if from == "" {
		return
	}
	if st.requiredBy == nil {
		st.requiredBy = map[string]map[string]bool{}
	}
	if st.requiredBy[key] == nil {
		st.requiredBy[key] = map[string]bool{}
	}
	st.requiredBy[key][from] = true
}

// blameChain returns key plus every ancestor that (transitively)
// requested it, per the standing requiredBy index.
func (st *searchState) blameChain(key string) map[string]bool {
	out := map[string]bool{}
	queue := []string{key}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if out[k] {
			continue
		}
		out[k] = true
		for parent := range st.requiredBy[k] {
			if !out[parent] {
				queue = append(queue, parent)
			}
		}
	}
	return out
}

// conflictErr signals that the package named key cannot be satisfied
// given everything decided so far. causes names every decision (key
// itself, plus every ancestor the blame chain reaches) whose retrying a
// different candidate might resolve it; a decision frame only retries
// when its own key appears in causes, and otherwise backjumps past
// itself unchanged, until the frame (or frames) actually implicated get
// a chance to pick a different version.
type conflictErr struct {
	key    string
	causes map[string]bool
	reason string
}

func (e *conflictErr) Error() string { return fmt.Sprintf("%s: %s", e.key, e.reason) }

// forkNeededErr signals that the current environment fork only partially
// satisfies a dependency's marker; the caller splits the fork in two and
// resolves each half independently.
type forkNeededErr struct {
	marker model.MarkerTree
}

func (e *forkNeededErr) Error() string { return "fork needed on " + e.marker.String() }

const maxForkDepth = 24

// Solve resolves roots into a Solution, forking on marker disjunction and
// backtracking over resolvable version conflicts.
func (r *Resolver) Solve(ctx context.Context, roots []model.Requirement, opts Options) (*Solution, error) {
	done := telemetry.StartSpan("resolver.solve", "roots", len(roots))
	var retErr error
	defer func() {
		status := "ok"
		if retErr != nil {
			status = "error"
		}
		done("status", status)
	}()

	var rootQueue []pending
	for _, req := range roots {
		rootQueue = append(rootQueue, pending{req: req, marker: req.Marker, isRoot: true})
	}

	rootEnv := model.MarkerTrue
	if len(opts.Env) > 0 {
		rootEnv = markerFromEnv(opts.Env)
	}

	nodes, err := r.solveUniverse(ctx, rootQueue, rootEnv, opts, 0)
	if err != nil {
		retErr = err
		return nil, retErr
	}

	merged := mergeForkedNodes(nodes)
	out := &Solution{}
	for _, n := range merged {
		out.Packages = append(out.Packages, n.toResolved())
	}
	sort.Slice(out.Packages, func(i, j int) bool {
		a, b := out.Packages[i], out.Packages[j]
		if a.Name.Normalized() != b.Name.Normalized() {
			return a.Name.Normalized() < b.Name.Normalized()
		}
		return a.Version.LessThan(b.Version)
	})
	return out, nil
}

// solveUniverse resolves roots within one environment fork (env), forking
// further and recursing whenever a dependency's marker only partially
// applies within env.
func (r *Resolver) solveUniverse(ctx context.Context, roots []pending, env model.MarkerTree, opts Options, depth int) ([]*decisionNode, error) {
	if env.IsFalse() {
		return nil, nil // this combination of markers can never occur; contributes nothing
	}

	st := &searchState{decided: map[string]*decisionNode{}}
	queue := append([]pending(nil), roots...)
	err := r.solveQueue(ctx, st, queue, env, opts)

	if fe, ok := err.(*forkNeededErr); ok {
		if depth >= maxForkDepth {
			return nil, fmt.Errorf("marker forking exceeded depth %d resolving on %s", maxForkDepth, fe.marker.String())
		}
		yesEnv := env.And(fe.marker)
		noEnv := env.And(fe.marker.Not())
		yesNodes, err := r.solveUniverse(ctx, roots, yesEnv, opts, depth+1)
		if err != nil {
			return nil, err
		}
		noNodes, err := r.solveUniverse(ctx, roots, noEnv, opts, depth+1)
		if err != nil {
			return nil, err
		}
		return append(yesNodes, noNodes...), nil
	}

	if ce, ok := err.(*conflictErr); ok {
		return nil, &NoSolutionError{
			Name:        ce.key,
			Reason:      ce.reason,
			Suggestions: suggestNames(ce.key, st.order),
		}
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]*decisionNode, 0, len(st.order))
	for _, key := range st.order {
		n := st.decided[key]
		n.environment = env
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// solveQueue processes queue against st, recursing one item at a time so
// that a conflict or fork discovered deep in the queue can unwind back
// through the exact frames that need to retry or split.
func (r *Resolver) solveQueue(ctx context.Context, st *searchState, queue []pending, env model.MarkerTree, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(queue) == 0 {
		return nil
	}
	item := queue[0]
	rest := queue[1:]

	inEnv := env.And(item.marker)
	if inEnv.IsFalse() {
		return r.solveQueue(ctx, st, rest, env, opts) // never applies in this fork
	}
	if !model.Implies(env, item.marker) {
		return &forkNeededErr{marker: item.marker}
	}

	key := item.req.Name.Normalized()
	st.recordRequirer(key, item.from.Normalized())

	if node, ok := st.decided[key]; ok {
		merged := append(append([]model.VersionSpecifiers(nil), node.constraints...), item.req.Specifiers)
		if !matchesAll(node.version, merged) {
			return &conflictErr{
				key:    key,
				causes: st.blameChain(key),
				reason: fmt.Sprintf("requires %s but %s was already selected for another requirement", item.req.Specifiers.String(), node.version.String()),
			}
		}
		node.constraints = merged
		node.edges = append(node.edges, Edge{From: item.from, Marker: item.marker, Extras: item.extras})
		err := r.solveQueue(ctx, st, rest, env, opts)
		if err != nil {
			node.edges = node.edges[:len(node.edges)-1]
			node.constraints = node.constraints[:len(node.constraints)-1]
		}
		return err
	}

	candidates, err := r.candidatesFor(ctx, item.req, opts, item.isRoot)
	if err != nil {
		return &conflictErr{key: key, causes: st.blameChain(key), reason: err.Error()}
	}

	lastReason := "no version satisfies the combined requirements"
	for _, cand := range candidates {
		if !matchesAll(cand.version, []model.VersionSpecifiers{item.req.Specifiers}) {
			continue
		}

		meta, err := r.DistDB.FetchMetadata(ctx, cand.dist)
		if err != nil {
			lastReason = err.Error()
			continue
		}

		node := &decisionNode{
			name:        item.req.Name,
			version:     cand.version,
			dist:        cand.dist,
			meta:        meta,
			constraints: []model.VersionSpecifiers{item.req.Specifiers},
			edges:       []Edge{{From: item.from, Marker: item.marker, Extras: item.extras}},
		}
		st.decided[key] = node
		st.order = append(st.order, key)

		var childQueue []pending
		for _, depStr := range meta.RequiresDist {
			childReq, err := parseDependencyString(depStr, item.extras)
			if err != nil {
				continue // unparseable Requires-Dist entry: skip, don't fail the whole solve
			}
			combinedMarker := item.marker.And(childReq.Marker)
			childQueue = append(childQueue, pending{req: childReq, from: item.req.Name, marker: combinedMarker, extras: childReq.Extras})
		}
		newQueue := make([]pending, 0, len(rest)+len(childQueue))
		newQueue = append(newQueue, rest...)
		newQueue = append(newQueue, childQueue...)

		err = r.solveQueue(ctx, st, newQueue, env, opts)
		if err == nil {
			return nil
		}

		delete(st.decided, key)
		st.order = st.order[:len(st.order)-1]

		if fe, ok := err.(*forkNeededErr); ok {
			return fe // structural; no candidate of ours changes that, propagate immediately
		}
		if ce, ok := err.(*conflictErr); ok {
			if ce.causes[key] {
				lastReason = ce.reason
				continue // this decision is implicated: try the next candidate
			}
			return err // this frame's decision isn't implicated: backjump past it unchanged
		}
		return err
	}
	return &conflictErr{key: key, causes: st.blameChain(key), reason: lastReason}
}

type candidate struct {
	version model.Version
	dist    distdb.Distribution
	isWheel bool
}

// candidatesFor returns req's candidates, filtered by any pin and by
// prerelease policy, ordered per opts.Resolution.
func (r *Resolver) candidatesFor(ctx context.Context, req model.Requirement, opts Options, isRoot bool) ([]candidate, error) {
	if req.SourceKind != model.SourceRegistry {
		v, dist, err := selectDirectCandidate(req)
		if err != nil {
			return nil, err
		}
		return []candidate{{version: v, dist: dist}}, nil
	}

	files, err := r.Index.Fetch(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found on any configured index")
	}

	var all []candidate
	for _, f := range files {
		if f.Yanked {
			continue
		}
		if wheel, err := model.ParseWheelFilename(f.Filename); err == nil {
			all = append(all, candidate{version: wheel.Version, isWheel: true, dist: distFromFile(req, wheel.Version, f, true)})
			continue
		}
		if sdist, err := model.ParseSdistFilename(f.Filename); err == nil {
			all = append(all, candidate{version: sdist.Version, isWheel: false, dist: distFromFile(req, sdist.Version, f, false)})
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no wheel or sdist filenames could be parsed")
	}

	if pinned, ok := opts.Preferences.Pinned[req.Name.Normalized()]; ok {
		var filtered []candidate
		for _, c := range all {
			if c.version.Equal(pinned) {
				filtered = append(filtered, c)
			}
		}
		all = filtered
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no files match the pinned version")
	}

	policy := PrereleaseDisallow
	if opts.Prerelease != nil {
		policy = opts.Prerelease(req.Name)
	}
	if requirementWantsExplicitPrerelease(req) {
		// A requirement that names an exact prerelease (e.g. =="1.0.0a1")
		// always allows it, independent of the package-wide policy.
		policy = PrereleaseAllow
	}

	pool := all
	switch policy {
	case PrereleaseAllow:
		// no filtering
	case PrereleaseIfNecessary:
		stable := filterPrerelease(all)
		if anyMatches(stable, req) {
			pool = stable
		}
	default:
		pool = filterPrerelease(all)
	}

	sortCandidates(pool, opts.Resolution, isRoot)
	return pool, nil
}

func filterPrerelease(cands []candidate) []candidate {
	var out []candidate
	for _, c := range cands {
		if !c.version.IsPrerelease() {
			out = append(out, c)
		}
	}
	return out
}

func anyMatches(cands []candidate, req model.Requirement) bool {
	for _, c := range cands {
		if req.Specifiers.Empty() || req.Specifiers.Matches(c.version) {
			return true
		}
	}
	return false
}

func requirementWantsExplicitPrerelease(req model.Requirement) bool {
	for _, sp := range req.Specifiers.Items() {
		if sp.Version.IsPrerelease() {
			return true
		}
	}
	return false
}

func sortCandidates(cands []candidate, strategy ResolutionStrategy, isRoot bool) {
	ascending := strategy == ResolutionLowest || (strategy == ResolutionLowestDirect && isRoot)
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].version.Equal(cands[j].version) {
			if ascending {
				return cands[i].version.LessThan(cands[j].version)
			}
			return cands[j].version.LessThan(cands[i].version)
		}
		return cands[i].isWheel && !cands[j].isWheel
	})
}

func matchesAll(v model.Version, sets []model.VersionSpecifiers) bool {
	for _, s := range sets {
		if !s.Matches(v) {
			return false
		}
	}
	return true
}

func distFromFile(req model.Requirement, v model.Version, f index.File, isWheel bool) distdb.Distribution {
	kind := distdb.KindRegistrySdist
	if isWheel {
		kind = distdb.KindRegistryWheel
	}
	return distdb.Distribution{
		ID:      req.Name.Normalized() + "@" + v.String(),
		Name:    req.Name.String(),
		Version: v.String(),
		Kind:    kind,
		URL:     f.URL,
		SHA256:  f.SHA256,
	}
}

func selectDirectCandidate(req model.Requirement) (model.Version, distdb.Distribution, error) {
	switch req.SourceKind {
	case model.SourceURL:
		kind := distdb.KindDirectURLSdist
		if _, err := model.ParseWheelFilename(lastPathSegment(req.URL)); err == nil {
			kind = distdb.KindDirectURLWheel
		}
		return model.Version{}, distdb.Distribution{
			ID: req.Name.Normalized() + "@" + req.URL, Name: req.Name.String(),
			Kind: kind, URL: req.URL,
		}, nil
	case model.SourceGit:
		return model.Version{}, distdb.Distribution{
			ID:   req.Name.Normalized() + "@git+" + req.Git.URL + "@" + req.Git.Ref,
			Name: req.Name.String(), Kind: distdb.KindGit,
			GitURL: req.Git.URL, GitRef: req.Git.Ref,
		}, nil
	case model.SourcePath:
		return model.Version{}, distdb.Distribution{
			ID: req.Name.Normalized() + "@" + req.Path.Path, Name: req.Name.String(),
			Kind: distdb.KindPath, LocalDir: req.Path.Path, Editable: req.Path.Editable,
		}, nil
	default:
		return model.Version{}, distdb.Distribution{}, fmt.Errorf("unsupported direct source kind")
	}
}

func lastPathSegment(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

// parseDependencyString parses a Requires-Dist entry. parentExtras is not
// consulted: the entry's marker, including any `extra ==` condition, is
// returned unchanged.
func parseDependencyString(s string, parentExtras []model.Extra) (model.Requirement, error) {
	return model.ParseRequirement(s)
}

func suggestNames(target string, seen []string) []string {
	var out []string
	for _, s := range seen {
		if fuzzy.Match(strings.ToLower(target), strings.ToLower(s)) {
			out = append(out, s)
		}
		if len(out) >= 3 {
			break
		}
	}
	return out
}

// mergeForkedNodes collapses duplicate (name, version) decisions produced
// by independent environment forks into one Resolved per distinct version,
// unioning the markers under which each applies.
func mergeForkedNodes(nodes []*decisionNode) []*decisionNode {
	byKey := map[string]*decisionNode{}
	var order []string
	for _, n := range nodes {
		key := n.name.Normalized() + "@" + n.version.String()
		if existing, ok := byKey[key]; ok {
			existing.environment = existing.environment.Or(n.environment)
			existing.edges = mergeEdges(existing.edges, n.edges)
			continue
		}
		clone := *n
		byKey[key] = &clone
		order = append(order, key)
	}
	out := make([]*decisionNode, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

func mergeEdges(a, b []Edge) []Edge {
	seen := map[string]bool{}
	var out []Edge
	for _, e := range append(append([]Edge(nil), a...), b...) {
		extra := ""
		if len(e.Extras) > 0 {
			extra = e.Extras[0].Normalized()
		}
		key := e.From.Normalized() + "|" + extra + "|" + e.Marker.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func markerFromEnv(env map[model.MarkerVar]string) model.MarkerTree {
	m := model.MarkerTrue
	for v, val := range env {
		m = m.And(model.Atom(v, model.MOpEqual, val))
	}
	return m
}
