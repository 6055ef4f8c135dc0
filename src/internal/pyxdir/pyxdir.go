// Package pyxdir locates the tool's per-user state directories: cache,
// virtual environments, and shims. Grounded on xe/src/internal/xedir/xedir.go,
// trimmed of the plugin-directory concept (spec.md §1 excludes a plugin
// system) and renamed to the new domain.
package pyxdir

import (
	"os"
	"path/filepath"
	"runtime"
)

func Home() (string, error) {
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "pkgctl"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Local", "pkgctl"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "pkgctl"), nil
}

func MustHome() string {
	home, err := Home()
	if err != nil {
		return "pkgctl"
	}
	return home
}

func ConfigFile() string {
	return filepath.Join(MustHome(), "config.toml")
}

func CacheDir() string {
	return filepath.Join(MustHome(), "cache")
}

func VenvDir() string {
	return filepath.Join(MustHome(), "venvs")
}

func ShimDir() string {
	return filepath.Join(MustHome(), "bin")
}

func EnsureHome() error {
	return os.MkdirAll(MustHome(), 0755)
}
