// Package httpcache implements the RFC 9111 caching layer of spec.md §4.4:
// conditional revalidation over a retrying HTTP client, streaming bodies,
// and an offline mode. Grounded on original_source's
// crates/puffin-client/src/cached_client.rs for the Fresh/Stale state
// machine; the teacher repo has no caching layer at all
// (xe/src/internal/resolver/pypi.go does a bare http.Get).
package httpcache

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/juju/errors"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
)

// revalidation holds the cache-control bookkeeping stored alongside a
// cached payload.
type revalidation struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	StoredAt     time.Time `json:"stored_at"`
	MaxAge       int       `json:"max_age_seconds"`
	NoStore      bool      `json:"no_store"`
}

type envelope struct {
	Policy  revalidation    `json:"policy"`
	Payload json.RawMessage `json:"payload"`
}

// State is the cache-policy disposition for an entry at the current clock.
type State int

const (
	StateAbsent State = iota
	StateFresh
	StateStale
)

func (r revalidation) state(now time.Time, freshness cachestore.Freshness) State {
	switch freshness {
	case cachestore.FreshnessImmutable:
		return StateFresh
	case cachestore.FreshnessMustRevalidate:
		return StateStale
	default: // stale-while-revalidate
		if r.MaxAge <= 0 {
			return StateStale
		}
		if now.Before(r.StoredAt.Add(time.Duration(r.MaxAge) * time.Second)) {
			return StateFresh
		}
		return StateStale
	}
}

// Transform converts an HTTP response into the payload to cache. It may
// issue further requests via an uncached client (e.g. range requests).
// The returned payload is what Get ultimately returns to the caller.
type Transform func(resp *http.Response) (json.RawMessage, error)

// Client wraps a retrying *http.Client with an RFC 9111 cache backed by a
// cachestore.Store.
type Client struct {
	HTTP       *http.Client
	Store      *cachestore.Store
	Offline    bool
	MaxRetries int
	// Refresh forces step 3's conditional request even for an entry that
	// would otherwise be considered Fresh, without discarding it — the
	// SPEC_FULL `--refresh`/`--refresh-package` behavior.
	Refresh func(bucket cachestore.Bucket, key string) bool
}

// New constructs a Client with sane retry defaults.
func New(store *cachestore.Store) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Store:      store,
		MaxRetries: 3,
	}
}

// ErrOffline is returned when offline mode is enabled and no cached entry
// exists to serve.
var ErrOffline = errors.New("httpcache: offline and no cached entry available")

// Get fetches url, consulting and updating the cache entry identified by
// (bucket, segments, filename). transform computes the payload to cache
// from a non-304 response.
func (c *Client) Get(ctx context.Context, bucket cachestore.Bucket, segments []string, filename, url string, transform Transform) (json.RawMessage, error) {
	key := cachestore.CacheKey{Bucket: bucket, Segments: segments, Filename: filename + ".json"}
	entry, err := c.Store.Entry(key)
	if err != nil {
		return nil, errors.Annotate(err, "httpcache: resolve cache entry")
	}

	lock, err := c.Store.AcquireLock(entry.Path)
	if err != nil {
		return nil, errors.Annotate(err, "httpcache: acquire lock")
	}
	defer lock.Release()

	env, hit, err := readEnvelope(entry.Path)
	if err != nil {
		// Corrupt cache entry: log-equivalent (caller may wrap with
		// context), discard, and treat as absent per spec.md §4.4/§7.
		hit = false
	}

	forceRevalidate := c.Refresh != nil && c.Refresh(bucket, filename)
	st := StateAbsent
	if hit {
		st = env.Policy.state(time.Now(), cachestore.Policy(bucket))
		if forceRevalidate && st == StateFresh {
			st = StateStale
		}
	}

	if hit && st == StateFresh {
		return env.Payload, nil
	}

	if c.Offline {
		if hit {
			return env.Payload, nil
		}
		return nil, ErrOffline
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Annotate(err, "httpcache: build request")
	}
	if hit && st == StateStale {
		if env.Policy.ETag != "" {
			req.Header.Set("If-None-Match", env.Policy.ETag)
		}
		if env.Policy.LastModified != "" {
			req.Header.Set("If-Modified-Since", env.Policy.LastModified)
		}
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return nil, errors.Annotate(err, "httpcache: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hit {
		env.Policy = newRevalidation(resp, env.Policy)
		if err := writeEnvelope(c.Store, entry, env); err != nil {
			return nil, errors.Annotate(err, "httpcache: persist revalidated policy")
		}
		return env.Payload, nil
	}

	payload, err := transform(resp)
	if err != nil {
		return nil, errors.Annotate(err, "httpcache: transform response")
	}

	if cacheable(resp) {
		newEnv := envelope{Policy: newRevalidation(resp, revalidation{}), Payload: payload}
		if err := writeEnvelope(c.Store, entry, newEnv); err != nil {
			return nil, errors.Annotate(err, "httpcache: write cache entry")
		}
	}
	return payload, nil
}

func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		resp, err := c.HTTP.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
			lastErr = errors.Errorf("httpcache: server error status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	return nil, lastErr
}

func cacheable(resp *http.Response) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	cc := resp.Header.Get("Cache-Control")
	return cc != "no-store"
}

func newRevalidation(resp *http.Response, prev revalidation) revalidation {
	r := revalidation{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		StoredAt:     time.Now(),
	}
	if r.ETag == "" {
		r.ETag = prev.ETag
	}
	if r.LastModified == "" {
		r.LastModified = prev.LastModified
	}
	r.MaxAge = parseMaxAge(resp.Header.Get("Cache-Control"))
	return r
}

func parseMaxAge(cacheControl string) int {
	const prefix = "max-age="
	for _, directive := range splitComma(cacheControl) {
		if len(directive) > len(prefix) && directive[:len(prefix)] == prefix {
			n := 0
			for _, c := range directive[len(prefix):] {
				if c < '0' || c > '9' {
					break
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 300 // conservative default TTL for stale-while-revalidate buckets
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := s[start:i]
			for len(part) > 0 && part[0] == ' ' {
				part = part[1:]
			}
			out = append(out, part)
			start = i + 1
		}
	}
	return out
}

func readEnvelope(path string) (envelope, bool, error) {
	data, err := readFileIfExists(path)
	if err != nil {
		return envelope{}, false, err
	}
	if data == nil {
		return envelope{}, false, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, false, errors.Annotate(err, "httpcache: corrupt cache entry")
	}
	return env, true, nil
}

func writeEnvelope(store *cachestore.Store, entry cachestore.CacheEntry, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return store.WriteAtomic(entry, data)
}

func readFileIfExists(path string) ([]byte, error) {
	f, err := openIfExists(path)
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
