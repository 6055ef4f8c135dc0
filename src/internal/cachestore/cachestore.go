// Package cachestore implements the bucketed, content-addressed cache root
// described in spec.md §4.3: atomic writes, advisory per-entry locking, and
// a per-bucket freshness policy. Grounded on xe/src/internal/cache/cas.go's
// blob-directory-plus-atomic-rename pattern, generalized from one bucket
// (wheel blobs) to the full bucket set a package installer needs.
package cachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// Bucket names a cache partition. Each bucket has its own freshness policy.
type Bucket string

const (
	BucketSimpleIndex   Bucket = "simple-index"
	BucketMetadata      Bucket = "metadata"
	BucketWheels        Bucket = "wheels"
	BucketSourceBuilds  Bucket = "sdist-builds"
	BucketFlatIndex     Bucket = "flat-index"
	BucketInterpreter   Bucket = "interpreter"
)

// Freshness is a bucket's revalidation policy, consumed by the HTTP cache
// layer (package httpcache).
type Freshness int

const (
	// FreshnessImmutable entries are never re-checked once written (wheel
	// content keyed by hash never changes).
	FreshnessImmutable Freshness = iota
	// FreshnessMustRevalidate entries are conditionally re-validated on
	// every request (package index pages can change at any time).
	FreshnessMustRevalidate
	// FreshnessStaleWhileRevalidate entries are served as-is until a TTL
	// elapses, after which they are conditionally revalidated.
	FreshnessStaleWhileRevalidate
)

var bucketPolicy = map[Bucket]Freshness{
	BucketSimpleIndex:  FreshnessMustRevalidate,
	BucketMetadata:     FreshnessStaleWhileRevalidate,
	BucketWheels:       FreshnessImmutable,
	BucketSourceBuilds: FreshnessImmutable,
	BucketFlatIndex:    FreshnessStaleWhileRevalidate,
	BucketInterpreter:  FreshnessImmutable,
}

// Policy returns the freshness policy for bucket b.
func Policy(b Bucket) Freshness { return bucketPolicy[b] }

// CacheKey addresses one entry: a bucket, a list of path segments, and a
// filename.
type CacheKey struct {
	Bucket   Bucket
	Segments []string
	Filename string
}

// CacheEntry is the absolute filesystem path of an entry plus its parent
// directory.
type CacheEntry struct {
	Path string
	Dir  string
}

// Store is the cache root: a directory partitioned into buckets.
type Store struct {
	Root string

	// LockTimeout bounds how long AcquireLock waits for a contended
	// per-entry lock before failing. New sets it from UV_LOCK_TIMEOUT (whole
	// seconds) when that is a positive integer; defaults to 5 minutes per
	// spec.md §4.3/§5.
	LockTimeout time.Duration
}

// New creates (if absent) the cache root at root, seeding root/.gitignore
// with "*" on first creation.
func New(root string) (*Store, error) {
	s := &Store{Root: root, LockTimeout: 5 * time.Minute}
	if secs, err := strconv.Atoi(os.Getenv("UV_LOCK_TIMEOUT")); err == nil && secs > 0 {
		s.LockTimeout = time.Duration(secs) * time.Second
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, errors.Annotate(err, "cachestore: create root")
		}
		gi := filepath.Join(root, ".gitignore")
		if err := os.WriteFile(gi, []byte("*\n"), 0o644); err != nil {
			return nil, errors.Annotate(err, "cachestore: write .gitignore")
		}
	} else if err != nil {
		return nil, errors.Annotate(err, "cachestore: stat root")
	}
	return s, nil
}

// Entry resolves a CacheKey to its filesystem location, creating parent
// directories as needed.
func (s *Store) Entry(key CacheKey) (CacheEntry, error) {
	dir := filepath.Join(append([]string{s.Root, string(key.Bucket)}, key.Segments...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CacheEntry{}, errors.Annotatef(err, "cachestore: create bucket dir %s", dir)
	}
	return CacheEntry{Path: filepath.Join(dir, key.Filename), Dir: dir}, nil
}

// WriteAtomic writes data to entry via a sibling temp file plus rename, so
// concurrent readers observe either the old content or the new content,
// never a partial write.
func (s *Store) WriteAtomic(entry CacheEntry, data []byte) error {
	tmp := filepath.Join(entry.Dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "cachestore: write temp file")
	}
	if err := os.Rename(tmp, entry.Path); err != nil {
		_ = os.Remove(tmp)
		return errors.Annotate(err, "cachestore: rename temp file into place")
	}
	return nil
}

// Exists reports whether an entry's file is present.
func (e CacheEntry) Exists() bool {
	_, err := os.Stat(e.Path)
	return err == nil
}

// LockTimeoutError is returned by AcquireLock when the timeout elapses
// before the lock could be acquired; it names the resource so the caller
// can report a re-runnable diagnostic per spec.md §7.
type LockTimeoutError struct {
	Resource string
	Path     string
	Timeout  time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock on %s (%s)", e.Timeout, e.Resource, e.Path)
}

// LockedFile is an advisory lock on a single cache entry's lock file.
// Release is idempotent and safe to call via defer on every exit path
// (normal, error, or panic via recover upstream).
type LockedFile struct {
	path string
	file *os.File
}

// AcquireLock acquires the advisory lock for resource (typically a
// CacheEntry's path), blocking with exponential backoff up to
// s.LockTimeout. The lock file lives alongside the entry with a ".lock"
// suffix.
func (s *Store) AcquireLock(resource string) (*LockedFile, error) {
	lockPath := resource + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errors.Annotate(err, "cachestore: create lock dir")
	}

	deadline := time.Now().Add(s.LockTimeout)
	backoff := 10 * time.Millisecond
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			return &LockedFile{path: lockPath, file: f}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Annotatef(err, "cachestore: open lock file %s", lockPath)
		}
		if time.Now().After(deadline) {
			return nil, &LockTimeoutError{Resource: resource, Path: lockPath, Timeout: s.LockTimeout}
		}
		time.Sleep(backoff)
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}

// Release drops the lock. Safe to call multiple times.
func (l *LockedFile) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := f.Close(); err != nil {
		return errors.Annotate(err, "cachestore: close lock file")
	}
	return os.Remove(l.path)
}
