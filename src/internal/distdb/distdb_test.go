package distdb

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
)

func buildWheelZip(t *testing.T, metadata string) []byte {
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

func TestFetchMetadataFromWheel(t *testing.T) {
	payload := buildWheelZip(t, "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0.0\nRequires-Dist: six>=1.0\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := New(store)

	dist := Distribution{
		ID:   "pkg-1.0.0-wheel",
		Name: "pkg", Version: "1.0.0",
		Kind: KindRegistryWheel,
		URL:  srv.URL + "/pkg-1.0.0-py3-none-any.whl",
	}
	meta, err := db.FetchMetadata(context.Background(), dist)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "pkg" || meta.Version != "1.0.0" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if len(meta.RequiresDist) != 1 || meta.RequiresDist[0] != "six>=1.0" {
		t.Errorf("unexpected requires-dist: %+v", meta.RequiresDist)
	}
}

func TestFetchMetadataChecksumMismatchFails(t *testing.T) {
	payload := buildWheelZip(t, "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0.0\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := New(store)
	dist := Distribution{
		ID: "pkg-bad", Name: "pkg", Version: "1.0.0",
		Kind: KindRegistryWheel, URL: srv.URL + "/pkg-1.0.0-py3-none-any.whl",
		SHA256: "0000000000000000000000000000000000000000000000000000000000000",
	}
	if _, err := db.FetchMetadata(context.Background(), dist); err == nil {
		t.Error("expected checksum mismatch error")
	}
}

func TestFetchMetadataVerifiesMatchingChecksum(t *testing.T) {
	payload := buildWheelZip(t, "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0.0\n")
	sum := sha256.Sum256(payload)
	expected := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := New(store)
	dist := Distribution{
		ID: "pkg-good", Name: "pkg", Version: "1.0.0",
		Kind: KindRegistryWheel, URL: srv.URL + "/pkg-1.0.0-py3-none-any.whl",
		SHA256: expected,
	}
	if _, err := db.FetchMetadata(context.Background(), dist); err != nil {
		t.Fatalf("expected matching checksum to succeed: %v", err)
	}
}

func TestFetchMetadataDedupesInFlightRequests(t *testing.T) {
	payload := buildWheelZip(t, "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0.0\n")
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write(payload)
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := New(store)
	dist := Distribution{
		ID: "pkg-dedup", Name: "pkg", Version: "1.0.0",
		Kind: KindRegistryWheel, URL: srv.URL + "/pkg-1.0.0-py3-none-any.whl",
	}

	var wg sync.WaitGroup
	results := make([]Metadata, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			meta, err := db.FetchMetadata(context.Background(), dist)
			if err != nil {
				t.Error(err)
			}
			results[idx] = meta
		}(i)
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected one download for concurrent requests, got %d", got)
	}

	for _, m := range results {
		if m.Name != "pkg" {
			t.Errorf("expected all concurrent callers to see metadata, got %+v", m)
		}
	}
}

func TestParseMetadataBytesLatin1Fallback(t *testing.T) {
	raw := []byte("Metadata-Version: 2.1\nName: pkg\nVersion: 1.0.0\nSummary: caf\xe9\n")
	meta, err := parseMetadataBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "pkg" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestMetadataFromPyprojectBytes(t *testing.T) {
	src := `[project]
name = "pkg"
version = "1.0.0"
dependencies = [
    "requests>=2.0",
    "six",
]
`
	meta, err := metadataFromPyprojectBytes([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "pkg" || meta.Version != "1.0.0" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if len(meta.RequiresDist) != 2 {
		t.Errorf("expected 2 dependencies, got %+v", meta.RequiresDist)
	}
}
