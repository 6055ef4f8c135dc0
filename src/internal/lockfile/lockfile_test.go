package lockfile

import (
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/model"
	"github.com/pkgctl/pkgctl/src/internal/resolver"
)

func mustName(t *testing.T, s string) model.PackageName {
	t.Helper()
	n, err := model.NewPackageName(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func mustVersion(t *testing.T, s string) model.Version {
	t.Helper()
	v, err := model.ParseVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func sampleSolution(t *testing.T) *resolver.Solution {
	t.Helper()
	return &resolver.Solution{
		Packages: []resolver.Resolved{
			{
				Name: mustName(t, "Requests"), Version: mustVersion(t, "2.31.0"),
				Dist: distdb.Distribution{Kind: distdb.KindRegistryWheel, URL: "https://example.test/requests-2.31.0-py3-none-any.whl", SHA256: "abc123"},
				Edges: []resolver.Edge{{Marker: model.MarkerTrue}},
			},
			{
				Name: mustName(t, "urllib3"), Version: mustVersion(t, "2.0.0"),
				Dist: distdb.Distribution{Kind: distdb.KindRegistrySdist, URL: "https://example.test/urllib3-2.0.0.tar.gz"},
				Edges: []resolver.Edge{{From: mustName(t, "requests"), Marker: model.MarkerTrue}},
			},
		},
	}
}

func TestFromSolutionIsDeterministic(t *testing.T) {
	sol := sampleSolution(t)
	a := FromSolution(sol, []string{"requests"}, "3.12")
	b := FromSolution(sol, []string{"requests"}, "3.12")

	if len(a.Packages) != 2 || len(b.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d/%d", len(a.Packages), len(b.Packages))
	}
	for i := range a.Packages {
		if a.Packages[i].Name != b.Packages[i].Name {
			t.Errorf("non-deterministic package order at %d: %s vs %s", i, a.Packages[i].Name, b.Packages[i].Name)
		}
	}
	if a.Packages[0].Name != "requests" || a.Packages[1].Name != "urllib3" {
		t.Errorf("expected alphabetical package order, got %s, %s", a.Packages[0].Name, a.Packages[1].Name)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	sol := sampleSolution(t)
	lock := FromSolution(sol, []string{"requests"}, "3.12")

	path := filepath.Join(t.TempDir(), "lock.toml")
	if err := lock.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Version != FormatVersion {
		t.Errorf("expected version %d, got %d", FormatVersion, loaded.Version)
	}
	if len(loaded.Packages) != len(lock.Packages) {
		t.Fatalf("expected %d packages after round trip, got %d", len(lock.Packages), len(loaded.Packages))
	}
	if loaded.Packages[0].Name != "requests" {
		t.Errorf("unexpected first package: %s", loaded.Packages[0].Name)
	}
	if loaded.Packages[0].Wheels[0].Hash != "sha256:abc123" {
		t.Errorf("unexpected hash: %s", loaded.Packages[0].Wheels[0].Hash)
	}
	if len(loaded.Packages[1].Dependencies) != 1 || loaded.Packages[1].Dependencies[0].Name != "requests" {
		t.Errorf("unexpected dependency edges: %+v", loaded.Packages[1].Dependencies)
	}
}
