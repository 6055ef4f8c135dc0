package resolver

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/httpcache"
	"github.com/pkgctl/pkgctl/src/internal/index"
	"github.com/pkgctl/pkgctl/src/internal/model"
)

func buildWheel(t *testing.T, metadata string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("pkg-1.0.0.dist-info/METADATA")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(metadata)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSolveResolvesLinearChain(t *testing.T) {
	leafWheel := buildWheel(t, "Metadata-Version: 2.1\nName: leaf\nVersion: 1.0.0\n")
	rootWheel := buildWheel(t, "Metadata-Version: 2.1\nName: root\nVersion: 1.0.0\nRequires-Dist: leaf>=1.0.0\n")

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/root/":
			w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
			w.Write([]byte(`{"files":[{"filename":"root-1.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/root-1.0.0-py3-none-any.whl"}]}`))
		case r.URL.Path == "/leaf/":
			w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
			w.Write([]byte(`{"files":[{"filename":"leaf-1.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/leaf-1.0.0-py3-none-any.whl"}]}`))
		case r.URL.Path == "/dl/root-1.0.0-py3-none-any.whl":
			w.Write(rootWheel)
		case r.URL.Path == "/dl/leaf-1.0.0-py3-none-any.whl":
			w.Write(leafWheel)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	httpClient := httpcache.New(store)
	idxClient := &index.Client{HTTP: httpClient, Indexes: []index.Index{{Name: "test", URL: srv.URL}}}
	db := distdb.New(store)
	db.HTTP = srv.Client()

	r := New(idxClient, db)
	rootReq, err := model.ParseRequirement("root")
	if err != nil {
		t.Fatal(err)
	}
	sol, err := r.Solve(context.Background(), []model.Requirement{rootReq}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sol.Packages) != 2 {
		t.Fatalf("expected 2 resolved packages, got %d: %+v", len(sol.Packages), sol.Packages)
	}
	names := map[string]bool{}
	for _, p := range sol.Packages {
		names[p.Name.Normalized()] = true
	}
	if !names["root"] || !names["leaf"] {
		t.Errorf("expected root and leaf resolved, got %+v", names)
	}
}

func TestSuggestNamesFuzzyMatches(t *testing.T) {
	suggestions := suggestNames("reqeusts", []string{"requests", "urllib3", "six"})
	if len(suggestions) == 0 {
		t.Error("expected at least one fuzzy suggestion for a misspelled name")
	}
}

// TestSolveBacktracksOnConflict builds a diamond where root depends on a
// and b, a's newest version requires c==1.0.0 but b requires c==2.0.0;
// only by backtracking a down to its older version (which doesn't
// require c at all) does a solution exist.
func TestSolveBacktracksOnConflict(t *testing.T) {
	aNew := buildWheel(t, "Metadata-Version: 2.1\nName: a\nVersion: 2.0.0\nRequires-Dist: c==1.0.0\n")
	aOld := buildWheel(t, "Metadata-Version: 2.1\nName: a\nVersion: 1.0.0\n")
	bWheel := buildWheel(t, "Metadata-Version: 2.1\nName: b\nVersion: 1.0.0\nRequires-Dist: c==2.0.0\n")
	cWheel := buildWheel(t, "Metadata-Version: 2.1\nName: c\nVersion: 2.0.0\n")

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		switch r.URL.Path {
		case "/a/":
			w.Write([]byte(`{"files":[
				{"filename":"a-2.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/a-2.0.0.whl"},
				{"filename":"a-1.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/a-1.0.0.whl"}
			]}`))
		case "/b/":
			w.Write([]byte(`{"files":[{"filename":"b-1.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/b-1.0.0.whl"}]}`))
		case "/c/":
			w.Write([]byte(`{"files":[{"filename":"c-2.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/c-2.0.0.whl"}]}`))
		case "/dl/a-2.0.0.whl":
			w.Write(aNew)
		case "/dl/a-1.0.0.whl":
			w.Write(aOld)
		case "/dl/b-1.0.0.whl":
			w.Write(bWheel)
		case "/dl/c-2.0.0.whl":
			w.Write(cWheel)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	httpClient := httpcache.New(store)
	idxClient := &index.Client{HTTP: httpClient, Indexes: []index.Index{{Name: "test", URL: srv.URL}}}
	db := distdb.New(store)
	db.HTTP = srv.Client()

	r := New(idxClient, db)
	reqA, _ := model.ParseRequirement("a")
	reqB, _ := model.ParseRequirement("b")
	sol, err := r.Solve(context.Background(), []model.Requirement{reqA, reqB}, Options{})
	if err != nil {
		t.Fatalf("expected a solution via backtracking, got error: %v", err)
	}
	versions := map[string]string{}
	for _, p := range sol.Packages {
		versions[p.Name.Normalized()] = p.Version.String()
	}
	if versions["a"] != "1.0.0" {
		t.Errorf("expected a to backtrack to 1.0.0, got %s", versions["a"])
	}
	if versions["c"] != "2.0.0" {
		t.Errorf("expected c==2.0.0 to satisfy b, got %s", versions["c"])
	}
}

// TestSolveForksOnMarkerDisjunction resolves a requirement that applies
// only on one platform; the universal resolution must fork rather than
// collapsing to a single hardcoded environment, so the package is present
// in the solution with its marker recorded instead of being silently
// dropped or silently assumed.
func TestSolveForksOnMarkerDisjunction(t *testing.T) {
	onlyWinWheel := buildWheel(t, "Metadata-Version: 2.1\nName: only-win\nVersion: 1.0.0\n")

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		switch r.URL.Path {
		case "/only-win/":
			w.Write([]byte(`{"files":[{"filename":"only_win-1.0.0-py3-none-any.whl","url":"` + srv.URL + `/dl/only-win-1.0.0.whl"}]}`))
		case "/dl/only-win-1.0.0.whl":
			w.Write(onlyWinWheel)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	httpClient := httpcache.New(store)
	idxClient := &index.Client{HTTP: httpClient, Indexes: []index.Index{{Name: "test", URL: srv.URL}}}
	db := distdb.New(store)
	db.HTTP = srv.Client()

	r := New(idxClient, db)
	req, err := model.ParseRequirement(`only-win; sys_platform == "win32"`)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := r.Solve(context.Background(), []model.Requirement{req}, Options{})
	if err != nil {
		t.Fatalf("expected a forked solution, got error: %v", err)
	}
	if len(sol.Packages) != 1 {
		t.Fatalf("expected exactly one resolved package, got %d", len(sol.Packages))
	}
	pkg := sol.Packages[0]
	if pkg.Environment.IsTrue() || pkg.Environment.IsFalse() {
		t.Errorf("expected a partial (win32-only) marker, got %q", pkg.Environment.String())
	}
}

func TestCandidatesForPrereleaseIfNecessary(t *testing.T) {
	stable := candidate{version: mustVersion(t, "1.0.0")}
	pre := candidate{version: mustVersion(t, "2.0.0a1")}
	cands := []candidate{pre, stable}

	req, err := model.ParseRequirement("pkg>=1.0.0")
	if err != nil {
		t.Fatal(err)
	}

	filtered := filterPrerelease(cands)
	if !anyMatches(filtered, req) {
		t.Fatalf("expected the stable 1.0.0 candidate to satisfy >=1.0.0")
	}

	req2, err := model.ParseRequirement("pkg>=3.0.0")
	if err != nil {
		t.Fatal(err)
	}
	filtered2 := filterPrerelease(cands)
	if anyMatches(filtered2, req2) {
		t.Fatalf("no stable candidate should satisfy >=3.0.0, if-necessary should fall back to prereleases")
	}
}

func TestSortCandidatesResolutionStrategy(t *testing.T) {
	low := candidate{version: mustVersion(t, "1.0.0")}
	high := candidate{version: mustVersion(t, "2.0.0")}

	highest := []candidate{low, high}
	sortCandidates(highest, ResolutionHighest, true)
	if !highest[0].version.Equal(high.version) {
		t.Errorf("ResolutionHighest: expected 2.0.0 first, got %s", highest[0].version)
	}

	lowest := []candidate{high, low}
	sortCandidates(lowest, ResolutionLowest, true)
	if !lowest[0].version.Equal(low.version) {
		t.Errorf("ResolutionLowest: expected 1.0.0 first, got %s", lowest[0].version)
	}

	directRoot := []candidate{high, low}
	sortCandidates(directRoot, ResolutionLowestDirect, true)
	if !directRoot[0].version.Equal(low.version) {
		t.Errorf("ResolutionLowestDirect (root): expected 1.0.0 first, got %s", directRoot[0].version)
	}

	directTransitive := []candidate{low, high}
	sortCandidates(directTransitive, ResolutionLowestDirect, false)
	if !directTransitive[0].version.Equal(high.version) {
		t.Errorf("ResolutionLowestDirect (transitive): expected 2.0.0 first, got %s", directTransitive[0].version)
	}
}

func mustVersion(t *testing.T, s string) model.Version {
	t.Helper()
	v, err := model.ParseVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
