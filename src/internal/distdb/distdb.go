// Package distdb fetches metadata and archives for a resolved
// distribution regardless of where it comes from: a registry wheel or
// sdist, a direct URL, a git repository, or a local path. Grounded on
// xe/src/internal/engine/install.go's resolveParallel in-flight dedup
// pattern and xe/src/internal/cache/cas.go's StoreBlobFromURL (download
// to temp file, hash, atomic rename), adapted onto cachestore/httpcache
// instead of the teacher's ad-hoc CAS. Metadata parsing is grounded on
// xe/src/internal/resolver/metadata.go's ParseMetadataFile, extended
// with a golang.org/x/text/encoding/charmap fallback for non-UTF-8
// METADATA files and a PKG-INFO static-metadata fast path.
package distdb

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/juju/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
	"github.com/pkgctl/pkgctl/src/internal/model"
	"github.com/pkgctl/pkgctl/src/internal/telemetry"
)

// Kind discriminates where a distribution's bytes come from.
type Kind int

const (
	KindRegistryWheel Kind = iota
	KindRegistrySdist
	KindDirectURLWheel
	KindDirectURLSdist
	KindGit
	KindPath
)

// IsWheelKind reports whether k fetches a prebuilt wheel rather than an
// sdist, a git checkout, or a local path.
func (k Kind) IsWheelKind() bool {
	return k == KindRegistryWheel || k == KindDirectURLWheel
}

// Distribution identifies one fetchable unit. ID is used for in-flight
// dedup and must be stable for a given (name, version, source).
type Distribution struct {
	ID       string
	Name     string
	Version  string
	Kind     Kind
	URL      string // registry/direct wheel or sdist URL
	SHA256   string // expected digest, if known
	GitURL   string
	GitRef   string
	LocalDir string // KindPath
	Editable bool
}

// Metadata is the subset of a distribution's core metadata this module
// cares about during resolution and install.
type Metadata struct {
	Name            string
	Version         string
	RequiresDist    []string
	RequiresPython  string
	ProvidesExtra   []string
}

// FetchedArchive is a downloaded/extracted distribution ready for the
// installer: Root points at the wheel's extracted root, or the sdist's
// unpacked source tree.
type FetchedArchive struct {
	Root       string
	IsWheel    bool
	WheelName  model.WheelFilename
}

// DB coordinates fetches across distributions, deduplicating concurrent
// requests for the same Distribution.ID.
type DB struct {
	Store *cachestore.Store
	HTTP  *http.Client

	mu      sync.Mutex
	inFlight map[string]*call
}

type call struct {
	done chan struct{}
	meta Metadata
	err  error
}

func New(store *cachestore.Store) *DB {
	return &DB{
		Store:    store,
		HTTP:     &http.Client{},
		inFlight: make(map[string]*call),
	}
}

// FetchMetadata returns core metadata for dist, deduplicating concurrent
// requests for the same distribution ID.
func (db *DB) FetchMetadata(ctx context.Context, dist Distribution) (Metadata, error) {
	done := telemetry.StartSpan("distdb.fetch_metadata", "name", dist.Name, "kind", int(dist.Kind))
	var retErr error
	defer func() {
		status := "ok"
		if retErr != nil {
			status = "error"
		}
		done("status", status)
	}()

	db.mu.Lock()
	if existing, ok := db.inFlight[dist.ID]; ok {
		db.mu.Unlock()
		<-existing.done
		return existing.meta, existing.err
	}
	c := &call{done: make(chan struct{})}
	db.inFlight[dist.ID] = c
	db.mu.Unlock()

	defer func() {
		db.mu.Lock()
		delete(db.inFlight, dist.ID)
		db.mu.Unlock()
		close(c.done)
	}()

	meta, err := db.fetchMetadataUncached(ctx, dist)
	c.meta, c.err = meta, err
	retErr = err
	return meta, err
}

func (db *DB) fetchMetadataUncached(ctx context.Context, dist Distribution) (Metadata, error) {
	switch dist.Kind {
	case KindRegistryWheel, KindDirectURLWheel:
		return db.metadataFromWheel(ctx, dist)
	case KindRegistrySdist, KindDirectURLSdist:
		return db.metadataFromSdist(ctx, dist)
	case KindGit:
		return db.metadataFromGit(ctx, dist)
	case KindPath:
		return metadataFromDirectory(dist.LocalDir)
	default:
		return Metadata{}, fmt.Errorf("distdb: unknown distribution kind %d", dist.Kind)
	}
}

// metadataFromWheel downloads the whole wheel and reads its
// .dist-info/METADATA member; no ranged/partial read is attempted.
func (db *DB) metadataFromWheel(ctx context.Context, dist Distribution) (Metadata, error) {
	blobPath, err := db.downloadBlob(ctx, dist)
	if err != nil {
		return Metadata{}, err
	}
	zr, err := zip.OpenReader(blobPath)
	if err != nil {
		return Metadata{}, errors.Annotate(err, "distdb: open wheel as zip")
	}
	defer zr.Close()

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".dist-info/METADATA") {
			rc, err := f.Open()
			if err != nil {
				return Metadata{}, errors.Annotate(err, "distdb: open METADATA member")
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return Metadata{}, errors.Annotate(err, "distdb: read METADATA member")
			}
			return parseMetadataBytes(data)
		}
	}
	return Metadata{}, fmt.Errorf("distdb: no .dist-info/METADATA found in %s", dist.Name)
}

// metadataFromSdist reads metadata from the sdist's PKG-INFO member only.
// The sdist is never built and never fully unpacked; an archive with no
// PKG-INFO yields an error.
func (db *DB) metadataFromSdist(ctx context.Context, dist Distribution) (Metadata, error) {
	blobPath, err := db.downloadBlob(ctx, dist)
	if err != nil {
		return Metadata{}, err
	}
	data, metaVersion, err := readPkgInfoFromSdist(blobPath)
	if err == nil && staticPkgInfoEligible(metaVersion) {
		return parseMetadataBytes(data)
	}
	// No statically-trustworthy PKG-INFO: the sdist would need a build
	// backend invocation (e.g. PEP 517 get_requires_for_build_wheel) to
	// produce authoritative metadata. That build step is out of scope
	// here; surface what PKG-INFO does know, partial as it may be.
	if len(data) > 0 {
		return parseMetadataBytes(data)
	}
	return Metadata{}, fmt.Errorf("distdb: sdist %s has no usable PKG-INFO", dist.Name)
}

func staticPkgInfoEligible(metadataVersion string) bool {
	switch metadataVersion {
	case "2.2", "2.3", "2.4":
		return true
	default:
		return false
	}
}

// metadataFromGit clones the repository in-memory at the requested ref
// and reads its pyproject.toml/PKG-INFO, whichever is present.
func (db *DB) metadataFromGit(ctx context.Context, dist Distribution) (Metadata, error) {
	fs := memfs.New()
	opts := &git.CloneOptions{URL: dist.GitURL, Depth: 1}
	if dist.GitRef != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(dist.GitRef)
		opts.SingleBranch = true
	}
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, opts)
	if err != nil {
		// Retry without the branch constraint: dist.GitRef may name a
		// tag or a bare commit SHA rather than a branch.
		repo, err = git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{URL: dist.GitURL})
		if err != nil {
			return Metadata{}, errors.Annotatef(err, "distdb: clone %s", dist.GitURL)
		}
		if dist.GitRef != "" {
			w, werr := repo.Worktree()
			if werr == nil {
				_ = w.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(dist.GitRef)})
			}
		}
	}

	for _, candidate := range []string{"PKG-INFO", "pyproject.toml"} {
		f, err := fs.Open(candidate)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			continue
		}
		if candidate == "PKG-INFO" {
			return parseMetadataBytes(data)
		}
		return metadataFromPyprojectBytes(data)
	}
	return Metadata{}, fmt.Errorf("distdb: no PKG-INFO or pyproject.toml in %s", dist.GitURL)
}

func metadataFromDirectory(dir string) (Metadata, error) {
	for _, candidate := range []string{"PKG-INFO", "pyproject.toml"} {
		path := filepath.Join(dir, candidate)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if candidate == "PKG-INFO" {
			return parseMetadataBytes(data)
		}
		return metadataFromPyprojectBytes(data)
	}
	return Metadata{}, fmt.Errorf("distdb: no PKG-INFO or pyproject.toml under %s", dir)
}

// FetchArchive downloads dist's wheel or sdist archive into the cache
// store, verifying its digest when known, and returns the local path.
// Only meaningful for KindRegistryWheel/Sdist and KindDirectURLWheel/Sdist;
// git and path sources have no single archive to fetch this way.
func (db *DB) FetchArchive(ctx context.Context, dist Distribution) (string, error) {
	return db.downloadBlob(ctx, dist)
}

// downloadBlob fetches dist's archive into the cache store's wheel or
// sdist-builds bucket, verifying SHA256 when known, and returns its path.
func (db *DB) downloadBlob(ctx context.Context, dist Distribution) (string, error) {
	bucket := cachestore.BucketWheels
	if dist.Kind == KindRegistrySdist || dist.Kind == KindDirectURLSdist {
		bucket = cachestore.BucketSourceBuilds
	}
	filename := filepath.Base(dist.URL)
	key := cachestore.CacheKey{Bucket: bucket, Segments: []string{dist.Name}, Filename: filename}
	entry, err := db.Store.Entry(key)
	if err != nil {
		return "", errors.Annotate(err, "distdb: resolve cache entry")
	}
	if _, err := os.Stat(entry.Path); err == nil {
		return entry.Path, nil
	}

	lock, err := db.Store.AcquireLock(entry.Path)
	if err != nil {
		return "", errors.Annotate(err, "distdb: acquire lock")
	}
	defer lock.Release()

	if _, err := os.Stat(entry.Path); err == nil {
		return entry.Path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dist.URL, nil)
	if err != nil {
		return "", errors.Annotate(err, "distdb: build request")
	}
	resp, err := db.HTTP.Do(req)
	if err != nil {
		return "", errors.Annotatef(err, "distdb: download %s", dist.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("distdb: download %s: status %s", dist.URL, resp.Status)
	}

	hash := sha256.New()
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, hash), resp.Body); err != nil {
		return "", errors.Annotate(err, "distdb: read response body")
	}
	actual := hex.EncodeToString(hash.Sum(nil))
	if dist.SHA256 != "" && !strings.EqualFold(dist.SHA256, actual) {
		return "", fmt.Errorf("distdb: checksum mismatch for %s: expected %s, got %s", dist.Name, dist.SHA256, actual)
	}

	if err := db.Store.WriteAtomic(entry, buf.Bytes()); err != nil {
		return "", errors.Annotate(err, "distdb: persist downloaded archive")
	}
	return entry.Path, nil
}

// parseMetadataBytes parses a PKG-INFO/METADATA-format payload,
// transcoding from Latin-1 if it is not valid UTF-8 (older sdists
// predate the mandatory UTF-8 requirement).
func parseMetadataBytes(data []byte) (Metadata, error) {
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err == nil {
			data = decoded
		}
	}
	meta := Metadata{}
	metaVersion := ""
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			meta.Name = value
		case "Version":
			meta.Version = value
		case "Metadata-Version":
			metaVersion = value
		case "Requires-Dist":
			meta.RequiresDist = append(meta.RequiresDist, value)
		case "Requires-Python":
			meta.RequiresPython = value
		case "Provides-Extra":
			meta.ProvidesExtra = append(meta.ProvidesExtra, value)
		}
	}
	_ = metaVersion
	if meta.Name == "" {
		return meta, fmt.Errorf("distdb: metadata payload has no Name field")
	}
	return meta, nil
}

// metadataFromPyprojectBytes extracts [project] name/version/dependencies
// from a pyproject.toml without a full TOML parse, for the git/path
// sources where no PKG-INFO has been generated yet. A best-effort
// fallback: most real-world pyproject.toml files keep [project] fields
// on their own simple "key = value" lines.
func metadataFromPyprojectBytes(data []byte) (Metadata, error) {
	meta := Metadata{}
	inProject := false
	inDeps := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inProject = trimmed == "[project]"
			inDeps = false
			continue
		}
		if !inProject {
			continue
		}
		if strings.HasPrefix(trimmed, "dependencies") && strings.Contains(trimmed, "[") {
			inDeps = !strings.Contains(trimmed, "]")
			continue
		}
		if inDeps {
			dep := strings.Trim(trimmed, `", `)
			if dep != "" && dep != "]" {
				meta.RequiresDist = append(meta.RequiresDist, dep)
			}
			if strings.Contains(trimmed, "]") {
				inDeps = false
			}
			continue
		}
		if k, v, ok := strings.Cut(trimmed, "="); ok {
			k = strings.TrimSpace(k)
			v = strings.Trim(strings.TrimSpace(v), `"`)
			switch k {
			case "name":
				meta.Name = v
			case "version":
				meta.Version = v
			}
		}
	}
	if meta.Name == "" {
		return meta, fmt.Errorf("distdb: pyproject.toml has no [project] name")
	}
	return meta, nil
}

// readPkgInfoFromSdist extracts PKG-INFO and its Metadata-Version from an
// unpacked-in-memory sdist tarball/zip. Unsupported container formats
// return an error so the caller falls back cleanly.
func readPkgInfoFromSdist(path string) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, "", err
		}
		defer zr.Close()
		for _, f := range zr.File {
			if strings.HasSuffix(f.Name, "PKG-INFO") {
				rc, err := f.Open()
				if err != nil {
					return nil, "", err
				}
				data, err := io.ReadAll(rc)
				rc.Close()
				if err != nil {
					return nil, "", err
				}
				return data, extractMetadataVersion(data), nil
			}
		}
		return nil, "", fmt.Errorf("distdb: no PKG-INFO in %s", path)
	}
	return extractPkgInfoFromTar(path)
}

func extractMetadataVersion(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), ": "); ok && k == "Metadata-Version" {
			return v
		}
	}
	return ""
}
