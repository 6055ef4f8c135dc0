package installer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func buildFakeWheel(t *testing.T, root, name, version string) string {
	t.Helper()
	wheelDir := filepath.Join(root, "wheel")
	distInfo := filepath.Join(wheelDir, name+"-"+version+".dist-info")
	if err := os.MkdirAll(distInfo, 0o755); err != nil {
		t.Fatal(err)
	}

	pkgFile := filepath.Join(wheelDir, name, "__init__.py")
	if err := os.MkdirAll(filepath.Dir(pkgFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pkgFile, []byte("def main():\n    return 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(distInfo, "WHEEL"), []byte("Wheel-Version: 1.0\nRoot-Is-Purelib: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(distInfo, "METADATA"), []byte("Metadata-Version: 2.1\nName: "+name+"\nVersion: "+version+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(distInfo, "entry_points.txt"), []byte("[console_scripts]\n"+name+" = "+name+":main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	digest, size, err := hashFile(pkgFile)
	if err != nil {
		t.Fatal(err)
	}
	recordPath := filepath.Join(distInfo, "RECORD")
	f, err := os.Create(recordPath)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{name + "/__init__.py", digest, strconv.FormatInt(size, 10)}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]string{name + "-" + version + ".dist-info/RECORD", "", ""}); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	f.Close()

	return wheelDir
}

func TestInstallOneLinksAndWritesLauncher(t *testing.T) {
	root := t.TempDir()
	wheelDir := buildFakeWheel(t, root, "demo", "1.0.0")

	envRoot := filepath.Join(root, "venv")
	env := NewEnvironment(envRoot, filepath.Join(envRoot, "bin", "python"))

	err := InstallOne(env, Request{Name: "demo", Version: "1.0.0", WheelDir: wheelDir}, LinkCopy)
	if err != nil {
		t.Fatal(err)
	}

	pkgFile := filepath.Join(env.SitePackages, "demo", "__init__.py")
	if _, err := os.Stat(pkgFile); err != nil {
		t.Errorf("expected package file installed: %v", err)
	}

	launcher := filepath.Join(env.Scripts, "demo")
	info, err := os.Stat(launcher)
	if err != nil {
		t.Fatalf("expected launcher script: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("expected launcher to be executable")
	}
	body, err := os.ReadFile(launcher)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "from demo import main") {
		t.Errorf("launcher missing expected import, got: %s", body)
	}

	recordPath := filepath.Join(env.SitePackages, "demo-1.0.0.dist-info", "RECORD")
	entries, err := readRecord(recordPath)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if e.Path == "demo/__init__.py" {
			found = true
			if e.Digest == "" {
				t.Error("expected rewritten RECORD to carry a digest")
			}
		}
	}
	if !found {
		t.Error("expected rewritten RECORD to list demo/__init__.py")
	}
}

func TestInstallOneRejectsDistInfoNameMismatch(t *testing.T) {
	root := t.TempDir()
	wheelDir := buildFakeWheel(t, root, "demo", "1.0.0")

	envRoot := filepath.Join(root, "venv")
	env := NewEnvironment(envRoot, filepath.Join(envRoot, "bin", "python"))

	err := InstallOne(env, Request{Name: "other", Version: "1.0.0", WheelDir: wheelDir}, LinkCopy)
	if err == nil {
		t.Error("expected error for mismatched dist-info name")
	}
}

func TestVerifyRecordDetectsTamperedFile(t *testing.T) {
	root := t.TempDir()
	wheelDir := buildFakeWheel(t, root, "demo", "1.0.0")

	if err := os.WriteFile(filepath.Join(wheelDir, "demo", "__init__.py"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	envRoot := filepath.Join(root, "venv")
	env := NewEnvironment(envRoot, filepath.Join(envRoot, "bin", "python"))

	err := InstallOne(env, Request{Name: "demo", Version: "1.0.0", WheelDir: wheelDir}, LinkCopy)
	if err == nil {
		t.Error("expected RECORD verification to fail on tampered content")
	}
}
