package index

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
	"github.com/pkgctl/pkgctl/src/internal/httpcache"
	"github.com/pkgctl/pkgctl/src/internal/model"
)

func newTestClient(t *testing.T) *httpcache.Client {
	t.Helper()
	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return httpcache.New(store)
}

func TestFetchParsesJSONSimpleIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		w.Write([]byte(`{"files":[
			{"filename":"pkg-1.0.0-py3-none-any.whl","url":"https://example.test/pkg-1.0.0-py3-none-any.whl","hashes":{"sha256":"abc"}},
			{"filename":"","url":"https://example.test/bad.whl"}
		]}`))
	}))
	defer srv.Close()

	name, err := model.NewPackageName("Pkg")
	if err != nil {
		t.Fatal(err)
	}
	client := &Client{
		HTTP:    newTestClient(t),
		Indexes: []Index{{Name: "primary", URL: srv.URL}},
	}
	files, err := client.Fetch(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 parseable file, got %d: %+v", len(files), files)
	}
	if files[0].Filename != "pkg-1.0.0-py3-none-any.whl" {
		t.Errorf("unexpected filename: %s", files[0].Filename)
	}
	if files[0].SHA256 != "abc" {
		t.Errorf("unexpected sha256: %s", files[0].SHA256)
	}
}

func TestFetchFallsThroughOn404(t *testing.T) {
	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer miss.Close()
	hit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		w.Write([]byte(`{"files":[{"filename":"pkg-1.0.0.tar.gz","url":"https://example.test/pkg-1.0.0.tar.gz"}]}`))
	}))
	defer hit.Close()

	name, err := model.NewPackageName("pkg")
	if err != nil {
		t.Fatal(err)
	}
	client := &Client{
		HTTP: newTestClient(t),
		Indexes: []Index{
			{Name: "mirror", URL: miss.URL},
			{Name: "primary", URL: hit.URL},
		},
	}
	files, err := client.Fetch(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Filename != "pkg-1.0.0.tar.gz" {
		t.Fatalf("expected fallthrough to primary index, got %+v", files)
	}
}

func TestFetchStopsOnAuthenticationNeeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	never := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not reach second index after auth failure")
	}))
	defer never.Close()

	name, err := model.NewPackageName("pkg")
	if err != nil {
		t.Fatal(err)
	}
	client := &Client{
		HTTP: newTestClient(t),
		Indexes: []Index{
			{Name: "private", URL: srv.URL},
			{Name: "never", URL: never.URL},
		},
	}
	if _, err := client.Fetch(context.Background(), name); err == nil {
		t.Error("expected authentication-needed error")
	}
}

func TestFetchIgnoreCodesTreats403AsMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		w.Write([]byte(`{"files":[{"filename":"pkg-2.0.0-py3-none-any.whl","url":"https://example.test/pkg-2.0.0-py3-none-any.whl"}]}`))
	}))
	defer fallback.Close()

	name, err := model.NewPackageName("pkg")
	if err != nil {
		t.Fatal(err)
	}
	client := &Client{
		HTTP: newTestClient(t),
		Indexes: []Index{
			{Name: "quirky-mirror", URL: srv.URL, Policy: StatusCodePolicy{IgnoreCodes: map[int]bool{403: true}}},
			{Name: "primary", URL: fallback.URL},
		},
	}
	files, err := client.Fetch(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected fallthrough when 403 is explicitly ignored, got %+v", files)
	}
}

func TestFlatIndexEntriesLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pkg-1.0.0-py3-none-any.whl", "pkg-1.0.0.tar.gz", "README.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := FlatIndexEntries(context.Background(), nil, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 classifiable entries, got %d: %+v", len(entries), entries)
	}
}

func TestFlatIndexEntriesRemoteHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="pkg-1.0.0-py3-none-any.whl#sha256=` + sha64 + `">pkg-1.0.0-py3-none-any.whl</a>
			<a href="notes.txt">notes.txt</a>
		</body></html>`))
	}))
	defer srv.Close()

	entries, err := FlatIndexEntries(context.Background(), newTestClient(t), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 classifiable entry, got %d: %+v", len(entries), entries)
	}
	if entries[0].SHA256 != sha64 {
		t.Errorf("unexpected sha256: %s", entries[0].SHA256)
	}
}

const sha64 = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"
