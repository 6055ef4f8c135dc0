package model

import "testing"

func TestPackageNameNormalization(t *testing.T) {
	cases := []struct{ a, b string }{
		{"Foo_Bar", "foo-bar"},
		{"foo.bar", "foo-bar"},
		{"FOO--BAR", "foo-bar"},
		{"foo__bar..baz", "foo-bar-baz"},
	}
	for _, c := range cases {
		na, err := NewPackageName(c.a)
		if err != nil {
			t.Fatalf("NewPackageName(%q): %v", c.a, err)
		}
		nb, err := NewPackageName(c.b)
		if err != nil {
			t.Fatalf("NewPackageName(%q): %v", c.b, err)
		}
		if !na.Equal(nb) {
			t.Errorf("expected %q and %q to normalize equal, got %q vs %q", c.a, c.b, na.Normalized(), nb.Normalized())
		}
	}
}

func TestPackageNameIdempotent(t *testing.T) {
	n, err := NewPackageName("Foo_Bar.Baz")
	if err != nil {
		t.Fatal(err)
	}
	again, err := NewPackageName(n.Normalized())
	if err != nil {
		t.Fatal(err)
	}
	if again.Normalized() != n.Normalized() {
		t.Errorf("normalization not idempotent: %q -> %q", n.Normalized(), again.Normalized())
	}
}

func TestPackageNameRejectsInvalid(t *testing.T) {
	for _, bad := range []string{"", "   ", "foo bar", "foo/bar", "-foo", "foo-"} {
		if _, err := NewPackageName(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
