package cachestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewSeedsGitignore(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "cache")
	if _, err := New(root); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "*\n" {
		t.Errorf("expected .gitignore to contain \"*\\n\", got %q", data)
	}
}

func TestWriteAtomicReplacesContent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	entry, err := s.Entry(CacheKey{Bucket: BucketWheels, Segments: []string{"ab"}, Filename: "pkg.whl"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAtomic(entry, []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAtomic(entry, []byte("v2")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("expected final content v2, got %q", data)
	}
}

func TestAcquireLockExcludesConcurrentWriter(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.LockTimeout = 100 * time.Millisecond
	resource := filepath.Join(s.Root, "res")

	lock, err := s.AcquireLock(resource)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if _, err := s.AcquireLock(resource); err == nil {
		t.Error("expected contended lock to time out")
	} else if _, ok := err.(*LockTimeoutError); !ok {
		t.Errorf("expected LockTimeoutError, got %T: %v", err, err)
	}
}

func TestLockReleasedAllowsReacquire(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	resource := filepath.Join(s.Root, "res")

	lock, err := s.AcquireLock(resource)
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	lock2, err := s.AcquireLock(resource)
	if err != nil {
		t.Fatalf("expected re-acquire after release to succeed: %v", err)
	}
	_ = lock2.Release()
}
