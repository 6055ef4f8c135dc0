package model

import "testing"

func TestRequirementRoundTrip(t *testing.T) {
	inputs := []string{
		"requests",
		"requests>=2,<3",
		`requests[security]>=2.0 ; python_version >= "3.8"`,
		"flask @ https://example.com/flask-3.0.3-py3-none-any.whl",
		"mypkg @ git+https://github.com/pypa/sample.git@main",
	}
	for _, s := range inputs {
		r, err := ParseRequirement(s)
		if err != nil {
			t.Fatalf("ParseRequirement(%q): %v", s, err)
		}
		r2, err := ParseRequirement(r.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", r.String(), err)
		}
		if r.Name.Normalized() != r2.Name.Normalized() || r.SourceKind != r2.SourceKind {
			t.Errorf("%q: round trip mismatch: %q vs %q", s, r.String(), r2.String())
		}
	}
}

func TestRequirementURLSource(t *testing.T) {
	r, err := ParseRequirement("flask @ https://example.com/flask-3.0.3-py3-none-any.whl")
	if err != nil {
		t.Fatal(err)
	}
	if r.SourceKind != SourceURL {
		t.Errorf("expected SourceURL, got %v", r.SourceKind)
	}
	if r.URL != "https://example.com/flask-3.0.3-py3-none-any.whl" {
		t.Errorf("unexpected URL: %q", r.URL)
	}
}

func TestRequirementGitSource(t *testing.T) {
	r, err := ParseRequirement("mypkg @ git+https://github.com/pypa/sample.git@main")
	if err != nil {
		t.Fatal(err)
	}
	if r.SourceKind != SourceGit {
		t.Fatalf("expected SourceGit, got %v", r.SourceKind)
	}
	if r.Git.Ref != "main" {
		t.Errorf("expected ref 'main', got %q", r.Git.Ref)
	}
}

func TestRequirementExtrasAndMarker(t *testing.T) {
	r, err := ParseRequirement(`requests[security,socks]>=2.0 ; python_version >= "3.8"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Extras) != 2 {
		t.Fatalf("expected 2 extras, got %d", len(r.Extras))
	}
	if r.Marker.IsTrue() {
		t.Error("expected a non-trivial marker")
	}
}
