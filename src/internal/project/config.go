// Package project loads and saves a project's pkgctl.toml: the set of
// dependencies, the target Python version, venv and index settings, and
// the global cache location. Grounded on xe/src/internal/project/config.go
// (same BurntSushi/toml-backed load/save shape), extended with the
// venv/settings/index tables the CLI layer (ensureRuntimeForProject,
// index client construction) needs.
package project

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

const FileName = "pkgctl.toml"

type Config struct {
	Project  ProjectConfig     `toml:"project"`
	Python   PythonConfig      `toml:"python"`
	Deps     map[string]string `toml:"deps"`
	Venv     VenvConfig        `toml:"venv"`
	Settings SettingsConfig    `toml:"settings"`
	Index    IndexConfig       `toml:"index"`
	Cache    CacheConfig       `toml:"cache"`
}

type ProjectConfig struct {
	Name string `toml:"name"`
}

type PythonConfig struct {
	Version string `toml:"version"`
}

// VenvConfig names the managed virtual environment this project uses, if
// any; an empty Name means operations target the global interpreter.
type VenvConfig struct {
	Name string `toml:"name"`
}

// SettingsConfig holds per-project installer behavior.
type SettingsConfig struct {
	AutoVenv bool   `toml:"auto_venv"`
	LinkMode string `toml:"link_mode"` // clone, copy, hardlink, symlink
}

// IndexConfig configures package sources, mirroring the CLI's
// --index-url/--extra-index-url/--find-links flags.
type IndexConfig struct {
	URL       string   `toml:"url"`
	ExtraURLs []string `toml:"extra_urls"`
	FindLinks []string `toml:"find_links"`
}

type CacheConfig struct {
	Mode      string `toml:"mode"`
	GlobalDir string `toml:"global_dir"`
}

const defaultIndexURL = "https://pypi.org/simple/"

func NewDefault(projectDir string) Config {
	return Config{
		Project:  ProjectConfig{Name: filepath.Base(projectDir)},
		Python:   PythonConfig{Version: "3.12"},
		Deps:     map[string]string{},
		Settings: SettingsConfig{AutoVenv: true, LinkMode: "clone"},
		Index:    IndexConfig{URL: defaultIndexURL},
		Cache: CacheConfig{
			Mode:      "global-cas",
			GlobalDir: defaultGlobalCacheDir(),
		},
	}
}

func LoadOrCreate(projectDir string) (Config, string, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefault(projectDir)
		if err := Save(path, cfg); err != nil {
			return Config{}, "", err
		}
		return cfg, path, nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func Load(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func Save(path string, cfg Config) error {
	applyDefaults(&cfg)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Deps == nil {
		cfg.Deps = map[string]string{}
	}
	if cfg.Cache.Mode == "" {
		cfg.Cache.Mode = "global-cas"
	}
	if cfg.Cache.GlobalDir == "" {
		cfg.Cache.GlobalDir = defaultGlobalCacheDir()
	}
	if cfg.Python.Version == "" {
		cfg.Python.Version = "3.12"
	}
	if cfg.Index.URL == "" {
		cfg.Index.URL = defaultIndexURL
	}
	if cfg.Settings.LinkMode == "" {
		cfg.Settings.LinkMode = "clone"
	}
}

func defaultGlobalCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pkgctl-cache"
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "AppData", "Local", "pkgctl", "cache")
	}
	return filepath.Join(home, ".cache", "pkgctl")
}

func NormalizeDepName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(name, "_", "-"), ".", "-"))
}

// RequirementStrings turns the [deps] table into PEP 508 requirement
// strings suitable for the resolver: a version of "*" or "" is treated as
// an unconstrained requirement.
func (c Config) RequirementStrings() []string {
	reqs := make([]string, 0, len(c.Deps))
	for name, version := range c.Deps {
		if version != "" && version != "*" {
			reqs = append(reqs, name+"=="+version)
			continue
		}
		reqs = append(reqs, name)
	}
	return reqs
}
