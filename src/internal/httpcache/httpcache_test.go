package httpcache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
)

func TestGetCachesImmutableBucketWithoutRevalidation(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(store)

	transform := func(resp *http.Response) (json.RawMessage, error) {
		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), cachestore.BucketWheels, []string{"ab"}, "pkg", srv.URL, transform); err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Errorf("expected exactly one network hit for an immutable bucket, got %d", hits)
	}
}

func TestGetRevalidatesMustRevalidateBucketOn304(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n > 1 && r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"n":1}`))
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(store)
	transform := func(resp *http.Response) (json.RawMessage, error) {
		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	first, err := client.Get(context.Background(), cachestore.BucketSimpleIndex, nil, "idx", srv.URL, transform)
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.Get(context.Background(), cachestore.BucketSimpleIndex, nil, "idx", srv.URL, transform)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("expected revalidated payload to equal original: %q vs %q", first, second)
	}
	if hits != 2 {
		t.Errorf("expected two network round trips (one per request) for must-revalidate, got %d", hits)
	}
}

func TestOfflineServesStaleWithoutNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(store)
	transform := func(resp *http.Response) (json.RawMessage, error) {
		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	if _, err := client.Get(context.Background(), cachestore.BucketWheels, nil, "pkg", srv.URL, transform); err != nil {
		t.Fatal(err)
	}

	client.Offline = true
	payload, err := client.Get(context.Background(), cachestore.BucketWheels, nil, "pkg", srv.URL, transform)
	if err != nil {
		t.Fatalf("expected offline hit to succeed from cache: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Errorf("unexpected payload: %s", payload)
	}
	if hits != 1 {
		t.Errorf("expected no additional network calls while offline, got %d total hits", hits)
	}
}

func TestOfflineWithoutCacheFails(t *testing.T) {
	store, err := cachestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(store)
	client.Offline = true
	_, err = client.Get(context.Background(), cachestore.BucketWheels, nil, "missing", "http://example.invalid", nil)
	if err != ErrOffline {
		t.Errorf("expected ErrOffline, got %v", err)
	}
}
