package model

import "testing"

func TestWheelFilenameRoundTrip(t *testing.T) {
	inputs := []string{
		"pkg-1.0-py3-none-any.whl",
		"pkg-1.0-1-py3-none-any.whl",
		"numpy-1.26.0-cp312-cp312-manylinux_2_17_x86_64.whl",
	}
	for _, s := range inputs {
		w, err := ParseWheelFilename(s)
		if err != nil {
			t.Fatalf("ParseWheelFilename(%q): %v", s, err)
		}
		w2, err := ParseWheelFilename(w.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", w.String(), err)
		}
		if w.Distribution != w2.Distribution || !w.Version.Equal(w2.Version) {
			t.Errorf("%q: round trip mismatch", s)
		}
	}
}

func TestWheelFilenameBoundary(t *testing.T) {
	if _, err := ParseWheelFilename(".whl"); err == nil {
		t.Error("expected empty name to reject with missing version")
	}
	if _, err := ParseWheelFilename("a-b-c-d.whl"); err == nil {
		t.Error("expected 4-part name to reject")
	}
	if _, err := ParseWheelFilename("a-1.0-b-c-d-e-f.whl"); err == nil {
		t.Error("expected 7-part name to reject")
	}
	if _, err := ParseWheelFilename("pkg-1.0-py3-none-any.whl"); err != nil {
		t.Errorf("expected 5-part name to parse: %v", err)
	}
	if _, err := ParseWheelFilename("pkg-1.0-1-py3-none-any.whl"); err != nil {
		t.Errorf("expected 6-part name to parse: %v", err)
	}
	if _, err := ParseWheelFilename("pkg-1.0-abc-py3-none-any.whl"); err == nil {
		t.Error("expected build tag not starting with a digit to reject")
	}
}

func TestWheelCompatibility(t *testing.T) {
	platformTags := []PlatformTag{
		{Python: "cp312", ABI: "cp312", Platform: "manylinux_2_17_x86_64"},
		{Python: "py3", ABI: "none", Platform: "any"},
	}
	specific, err := ParseWheelFilename("pkg-1.0-cp312-cp312-manylinux_2_17_x86_64.whl")
	if err != nil {
		t.Fatal(err)
	}
	generic, err := ParseWheelFilename("pkg-1.0-py3-none-any.whl")
	if err != nil {
		t.Fatal(err)
	}
	if !specific.IsCompatible(platformTags) {
		t.Error("expected specific wheel to be compatible")
	}
	if !generic.IsCompatible(platformTags) {
		t.Error("expected generic wheel to be compatible")
	}
	sp, _ := specific.Priority(platformTags)
	gp, _ := generic.Priority(platformTags)
	if sp >= gp {
		t.Errorf("expected specific wheel (index %d) to outrank generic (index %d)", sp, gp)
	}

	incompatible, _ := ParseWheelFilename("pkg-1.0-cp39-cp39-win_amd64.whl")
	if incompatible.IsCompatible(platformTags) {
		t.Error("expected win_amd64/cp39 wheel to be incompatible with the given tags")
	}
}

func TestSdistFilenameRoundTrip(t *testing.T) {
	for _, s := range []string{"pkg-1.0.tar.gz", "pkg-1.0.zip", "pkg-1.0.tar.bz2", "pkg-1.0.tar.zst"} {
		sf, err := ParseSdistFilename(s)
		if err != nil {
			t.Fatalf("ParseSdistFilename(%q): %v", s, err)
		}
		if sf.String() != s {
			t.Errorf("expected round trip %q, got %q", s, sf.String())
		}
	}
}
