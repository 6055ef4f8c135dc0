// Package index implements the simple-repository and flat-index clients
// of spec.md §4.5, including per-index status-code policy. Grounded on
// xe/src/internal/resolver/pypi.go's JSON client (generalized from the
// PyPI-specific JSON API to PEP 503/691 simple-repository responses) and
// on original_source/crates/uv-distribution-types/src/status_code_strategy.rs
// for the policy type.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/juju/errors"

	"github.com/pkgctl/pkgctl/src/internal/cachestore"
	"github.com/pkgctl/pkgctl/src/internal/httpcache"
	"github.com/pkgctl/pkgctl/src/internal/model"
)

// File is one discovered distribution file entry.
type File struct {
	Filename     string
	URL          string
	SHA256       string
	RequiresPy   string
	Yanked       bool
	YankedReason string
}

// StatusAction tells the index client what to do about a non-2xx
// response: stop the whole search, or fall through to the next index.
type StatusAction int

const (
	ActionStop StatusAction = iota
	ActionNextIndex
)

// StatusCodePolicy governs the disposition of a non-2xx response from one
// index. The zero value is DefaultPolicy.
type StatusCodePolicy struct {
	// IgnoreCodes additionally treats these status codes as "not present
	// here, try next index" — used for mirrors that return 403 for a
	// missing package instead of 404.
	IgnoreCodes map[int]bool
}

// ErrAuthenticationNeeded is returned for 401/403 responses not covered
// by IgnoreCodes.
var ErrAuthenticationNeeded = errors.New("index: authentication required")

func (p StatusCodePolicy) Classify(status int) (StatusAction, error) {
	if status >= 200 && status < 300 {
		return ActionNextIndex, nil
	}
	if status == http.StatusNotFound {
		return ActionNextIndex, nil
	}
	if p.IgnoreCodes[status] {
		return ActionNextIndex, nil
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ActionStop, ErrAuthenticationNeeded
	}
	return ActionStop, fmt.Errorf("index: unexpected status %d", status)
}

// Index is one configured package source.
type Index struct {
	Name   string
	URL    string // base URL, e.g. https://pypi.org/simple/
	Policy StatusCodePolicy
	// AuthCapable records whether this index has been observed requiring
	// auth; Client.Fetch sets it when the index answers 401/403.
	AuthCapable bool
}

// Client fetches package metadata across a sequence of registry indexes
// plus an optional flat (--find-links) index.
type Client struct {
	HTTP    *httpcache.Client
	Indexes []Index
	// FlatLinks are additional sources: local directories or remote HTML
	// pages enumerated the same way as a simple-repository page.
	FlatLinks []string
}

// simpleJSON mirrors the subset of PEP 691's JSON simple-repository
// response this client consumes.
type simpleJSON struct {
	Files []struct {
		Filename   string            `json:"filename"`
		URL        string            `json:"url"`
		Hashes     map[string]string `json:"hashes"`
		RequiresPy string            `json:"requires-python"`
		Yanked     json.RawMessage   `json:"yanked"`
	} `json:"files"`
}

// Fetch returns every file entry across every configured index for
// package name, stopping at the first index where the policy says Stop.
func (c *Client) Fetch(ctx context.Context, name model.PackageName) ([]File, error) {
	var all []File
	for i, idx := range c.Indexes {
		files, action, err := c.fetchOne(ctx, idx, name)
		if err != nil {
			if err == ErrAuthenticationNeeded {
				c.Indexes[i].AuthCapable = true
			}
			return nil, errors.Annotatef(err, "index %s", idx.Name)
		}
		all = append(all, files...)
		if action == ActionStop {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchOne(ctx context.Context, idx Index, name model.PackageName) ([]File, StatusAction, error) {
	url := strings.TrimSuffix(idx.URL, "/") + "/" + name.Normalized() + "/"

	var statusErr error
	var statusCode int
	transform := func(resp *http.Response) (json.RawMessage, error) {
		statusCode = resp.StatusCode
		action, err := idx.Policy.Classify(resp.StatusCode)
		if err != nil {
			statusErr = err
			if action == ActionStop {
				return nil, err
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return json.RawMessage("{}"), nil
		}
		body := make([]byte, 0)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				body = append(body, buf[:n]...)
			}
			if rerr != nil {
				break
			}
		}
		if strings.Contains(resp.Header.Get("Content-Type"), "json") {
			return json.RawMessage(body), nil
		}
		return parseSimpleHTML(body)
	}

	payload, err := c.HTTP.Get(ctx, cachestore.BucketSimpleIndex, []string{idx.Name}, name.Normalized(), url, transform)
	if err != nil && statusErr == nil {
		return nil, ActionStop, err
	}
	if statusErr != nil {
		action, _ := idx.Policy.Classify(statusCode)
		return nil, action, statusErr
	}

	var doc simpleJSON
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, ActionStop, errors.Annotate(err, "index: parse simple-repository response")
	}
	out := make([]File, 0, len(doc.Files))
	for _, f := range doc.Files {
		if f.Filename == "" || f.URL == "" {
			continue // unparseable entry: skipped
		}
		out = append(out, File{
			Filename:   f.Filename,
			URL:        f.URL,
			SHA256:     f.Hashes["sha256"],
			RequiresPy: f.RequiresPy,
			Yanked:     len(f.Yanked) > 0 && string(f.Yanked) != "false",
		})
	}
	return out, ActionNextIndex, nil
}

var anchorRe = regexp.MustCompile(`(?is)<a[^>]*href\s*=\s*["']([^"']+)["'][^>]*>([^<]*)</a>`)
var hashFragmentRe = regexp.MustCompile(`#sha256=([0-9a-fA-F]{64})`)

// parseSimpleHTML extracts {filename, url, hash} triples from a PEP 503
// HTML index page. Unparseable anchors are skipped.
func parseSimpleHTML(body []byte) (json.RawMessage, error) {
	matches := anchorRe.FindAllSubmatch(body, -1)
	var doc simpleJSON
	for _, m := range matches {
		href := string(m[1])
		text := strings.TrimSpace(string(m[2]))
		if text == "" {
			continue
		}
		sha := ""
		if hm := hashFragmentRe.FindStringSubmatch(href); hm != nil {
			sha = hm[1]
		}
		doc.Files = append(doc.Files, struct {
			Filename   string            `json:"filename"`
			URL        string            `json:"url"`
			Hashes     map[string]string `json:"hashes"`
			RequiresPy string            `json:"requires-python"`
			Yanked     json.RawMessage   `json:"yanked"`
		}{Filename: text, URL: href, Hashes: map[string]string{"sha256": sha}})
	}
	return json.Marshal(doc)
}

// FlatIndexEntries enumerates files from a --find-links source: a local
// directory (listed directly) or a remote HTML page (parsed like a
// simple-repository page).
func FlatIndexEntries(ctx context.Context, httpClient *httpcache.Client, source string) ([]File, error) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		entries, err := os.ReadDir(source)
		if err != nil {
			return nil, errors.Annotate(err, "flat index: read directory")
		}
		var out []File
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if classifyFlatFile(e.Name()) == "" {
				continue // unclassifiable file, ignored
			}
			out = append(out, File{Filename: e.Name(), URL: "file://" + filepath.Join(source, e.Name())})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
		return out, nil
	}

	var result []File
	transform := func(resp *http.Response) (json.RawMessage, error) {
		body := make([]byte, 0)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				body = append(body, buf[:n]...)
			}
			if rerr != nil {
				break
			}
		}
		return parseSimpleHTML(body)
	}
	payload, err := httpClient.Get(ctx, cachestore.BucketFlatIndex, nil, "index", source, transform)
	if err != nil {
		return nil, errors.Annotate(err, "flat index: fetch")
	}
	var doc simpleJSON
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, errors.Annotate(err, "flat index: parse")
	}
	for _, f := range doc.Files {
		if classifyFlatFile(f.Filename) == "" {
			continue
		}
		result = append(result, File{Filename: f.Filename, URL: f.URL, SHA256: f.Hashes["sha256"]})
	}
	return result, nil
}

func classifyFlatFile(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".whl"):
		return "wheel"
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tar.bz2"),
		strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".zip"):
		return "sdist"
	default:
		return ""
	}
}
