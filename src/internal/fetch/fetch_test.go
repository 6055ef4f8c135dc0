package fetch

import (
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/lockfile"
)

func TestRenameFuncRejectsPathEscape(t *testing.T) {
	f := renameFunc()
	if got := f("../../etc/passwd"); got != "" {
		t.Errorf("expected path escape to be rejected, got %q", got)
	}
	if got := f("pkg/module.py"); got != "pkg/module.py" {
		t.Errorf("expected normal path to pass through, got %q", got)
	}
}

func TestDistributionOfWheel(t *testing.T) {
	pkg := lockfile.LockedPackage{
		Name: "requests", Version: "2.31.0",
		Wheels: []lockfile.LockedFile{{Filename: "requests-2.31.0-py3-none-any.whl", URL: "https://example.test/requests.whl", Hash: "sha256:abcd"}},
	}
	dist, err := distributionOf(pkg)
	if err != nil {
		t.Fatal(err)
	}
	if dist.SHA256 != "abcd" {
		t.Errorf("expected digest abcd, got %q", dist.SHA256)
	}
}

func TestDistributionOfSdistRequiresEntry(t *testing.T) {
	pkg := lockfile.LockedPackage{Name: "pkg", Version: "1.0.0"}
	if _, err := distributionOf(pkg); err == nil {
		t.Error("expected error for package with neither wheel nor sdist entry")
	}
}
