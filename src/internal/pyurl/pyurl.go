// Package pyurl implements URL canonicalization for cache-key equivalence,
// grounded on original_source/crates/cache-key/src/canonical_url.rs.
package pyurl

import (
	"net/url"
	"strings"
)

// CanonicalUrl is a URL normalized for equivalence comparisons: trailing
// "/" stripped, scheme, host and path lowercased for GitHub hosts only, and any trailing
// ".git" suffix in the path stripped (including before an "@ref" suffix).
//
// It deliberately exposes no method to recover its string form — only
// hashing and equality — to prevent accidental use for fetching. Use the
// original URL string for that.
type CanonicalUrl struct {
	key string
}

// NewCanonicalUrl computes the canonical form of raw.
func NewCanonicalUrl(raw string) CanonicalUrl {
	u, err := url.Parse(raw)
	if err != nil {
		// Unparsable input still needs a stable equivalence key; fall
		// back to the trimmed raw string.
		return CanonicalUrl{key: strings.TrimSuffix(raw, "/")}
	}

	scheme := u.Scheme
	host := u.Host
	path := u.Path

	// TODO(generalize-lowercasing): lowercasing is GitHub-only today, per
	// spec.md's Open Question; see original_source's own TODO on this.
	if isGitHubHost(host) {
		scheme = strings.ToLower(scheme)
		host = strings.ToLower(host)
		path = strings.ToLower(path)
	}

	path = strings.TrimSuffix(path, "/")

	if at := strings.LastIndex(path, "@"); at >= 0 {
		prefix, ref := path[:at], path[at:]
		prefix = stripDotGit(prefix)
		path = prefix + ref
	} else {
		path = stripDotGit(path)
	}

	key := scheme + "://" + host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		key += "#" + u.Fragment
	}
	return CanonicalUrl{key: key}
}

func isGitHubHost(host string) bool {
	return strings.EqualFold(host, "github.com") || strings.EqualFold(host, "www.github.com")
}

// stripDotGit removes a trailing ".git" extension on the last path
// component, case-insensitively.
func stripDotGit(path string) string {
	lastSlash := strings.LastIndex(path, "/")
	last := path
	if lastSlash >= 0 {
		last = path[lastSlash+1:]
	}
	if len(last) > 4 && strings.EqualFold(last[len(last)-4:], ".git") {
		return path[:len(path)-4]
	}
	return path
}

// Equal reports whether two canonical URLs address the same resource.
func (c CanonicalUrl) Equal(other CanonicalUrl) bool { return c.key == other.key }

// Hash returns a stable equivalence key suitable for use as a map key; it
// is not the original URL string and must not be used for fetching.
func (c CanonicalUrl) Hash() string { return c.key }

// RepositoryUrl additionally strips any "@ref" suffix and query/fragment,
// so that two URLs addressing the same repository compare equal
// regardless of subdirectory, ref, query, or fragment.
type RepositoryUrl struct {
	key string
}

// NewRepositoryUrl computes the repository-level canonical form of raw.
func NewRepositoryUrl(raw string) RepositoryUrl {
	u, err := url.Parse(raw)
	scheme := ""
	if err == nil {
		scheme = u.Scheme
	}

	canon := NewCanonicalUrl(raw)
	key := canon.key

	if strings.HasPrefix(scheme, "git+") || strings.Contains(key, "git+") {
		if at := strings.LastIndex(key, "@"); at >= 0 && at > strings.Index(key, "://") {
			key = key[:at]
		}
	}
	if q := strings.IndexAny(key, "?#"); q >= 0 {
		key = key[:q]
	}
	return RepositoryUrl{key: key}
}

func (r RepositoryUrl) Equal(other RepositoryUrl) bool { return r.key == other.key }
func (r RepositoryUrl) Hash() string                   { return r.key }
