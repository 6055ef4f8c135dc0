package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/lockfile"
)

func writeDistInfo(t *testing.T, root, name, version string, requires []string) {
	t.Helper()
	dir := filepath.Join(root, name+"-"+version+".dist-info")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "Metadata-Version: 2.1\nName: " + name + "\nVersion: " + version + "\n"
	for _, r := range requires {
		content += "Requires-Dist: " + r + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "METADATA"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanSitePackages(t *testing.T) {
	root := t.TempDir()
	writeDistInfo(t, root, "requests", "2.31.0", []string{"urllib3>=2.0"})
	writeDistInfo(t, root, "urllib3", "2.0.0", nil)

	installed, err := ScanSitePackages(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 2 {
		t.Fatalf("expected 2 installed packages, got %d", len(installed))
	}
	if installed["requests"].Version != "2.31.0" {
		t.Errorf("unexpected version: %+v", installed["requests"])
	}
}

func TestPlanDetectsInstallReinstallRemove(t *testing.T) {
	root := t.TempDir()
	writeDistInfo(t, root, "requests", "2.30.0", nil)
	writeDistInfo(t, root, "stale-pkg", "1.0.0", nil)
	installed, err := ScanSitePackages(root)
	if err != nil {
		t.Fatal(err)
	}

	target := &lockfile.Lockfile{Packages: []lockfile.LockedPackage{
		{Name: "requests", Version: "2.31.0"},
		{Name: "urllib3", Version: "2.0.0"},
	}}

	steps := Plan(installed, target)
	byName := map[string]Step{}
	for _, s := range steps {
		byName[s.Name] = s
	}
	if byName["requests"].Action != ActionReinstall {
		t.Errorf("expected requests to reinstall, got %v", byName["requests"].Action)
	}
	if byName["urllib3"].Action != ActionInstall {
		t.Errorf("expected urllib3 to install, got %v", byName["urllib3"].Action)
	}
	if byName["stale-pkg"].Action != ActionRemove {
		t.Errorf("expected stale-pkg to be removed, got %v", byName["stale-pkg"].Action)
	}
}

func TestCheckFindsMissingDependency(t *testing.T) {
	root := t.TempDir()
	writeDistInfo(t, root, "requests", "2.31.0", []string{"urllib3>=2.0"})
	installed, err := ScanSitePackages(root)
	if err != nil {
		t.Fatal(err)
	}
	issues := Check(installed)
	if len(issues) != 1 || issues[0].Package != "requests" {
		t.Fatalf("expected one issue on requests, got %+v", issues)
	}
}
