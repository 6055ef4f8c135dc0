package pyurl

import "testing"

func TestCanonicalUrlGitSuffixEquivalence(t *testing.T) {
	a := NewCanonicalUrl("git+https://github.com/pypa/sample.git")
	b := NewCanonicalUrl("git+https://github.com/pypa/sample")
	if !a.Equal(b) {
		t.Errorf("expected .git suffix to be ignored for equivalence")
	}
}

func TestCanonicalUrlTrailingSlashEquivalence(t *testing.T) {
	a := NewCanonicalUrl("https://example.com/pkg/")
	b := NewCanonicalUrl("https://example.com/pkg")
	if !a.Equal(b) {
		t.Errorf("expected trailing slash to be ignored")
	}
}

func TestCanonicalUrlGitHubCaseEquivalence(t *testing.T) {
	a := NewCanonicalUrl("https://GitHub.com/Pypa/Sample")
	b := NewCanonicalUrl("https://github.com/pypa/sample")
	if !a.Equal(b) {
		t.Errorf("expected GitHub host/path case to be ignored")
	}
}

func TestCanonicalUrlNonGitHubCasePreserved(t *testing.T) {
	a := NewCanonicalUrl("https://Example.com/Pkg")
	b := NewCanonicalUrl("https://example.com/pkg")
	if a.Equal(b) {
		t.Errorf("expected non-GitHub host case to NOT be collapsed (documented Open Question)")
	}
}

func TestCanonicalUrlGitRefBeforeExtensionStrip(t *testing.T) {
	a := NewCanonicalUrl("git+https://github.com/pypa/sample.git@abc123")
	b := NewCanonicalUrl("git+https://github.com/pypa/sample@abc123")
	if !a.Equal(b) {
		t.Errorf("expected .git suffix before @ref to be stripped")
	}
}

func TestRepositoryUrlIgnoresRefQueryFragment(t *testing.T) {
	a := NewRepositoryUrl("git+https://github.com/pypa/sample.git@main")
	b := NewRepositoryUrl("git+https://github.com/pypa/sample.git@develop")
	if !a.Equal(b) {
		t.Errorf("expected RepositoryUrl to ignore ref")
	}

	c := NewRepositoryUrl("https://example.com/pkg?foo=bar#frag")
	d := NewRepositoryUrl("https://example.com/pkg")
	if !c.Equal(d) {
		t.Errorf("expected RepositoryUrl to ignore query/fragment")
	}
}

func TestRepositoryUrlFollowsFromCanonicalEquivalence(t *testing.T) {
	a := NewRepositoryUrl("git+https://github.com/pypa/sample.git")
	b := NewRepositoryUrl("git+https://github.com/pypa/sample")
	if !a.Equal(b) {
		t.Errorf("expected RepositoryUrl(u) == RepositoryUrl(v) whenever CanonicalUrl(u) == CanonicalUrl(v)")
	}
}
