package model

import "testing"

func TestVersionRoundTrip(t *testing.T) {
	inputs := []string{
		"1.0", "1.0.0", "0.0.0", "1!2.0", "1.0a1", "1.0b2", "1.0rc3",
		"1.0.post1", "1.0.dev1", "1.0+local.1", "2023.10.15",
	}
	for _, s := range inputs {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", s, err)
		}
		v2, err := ParseVersion(v.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", v.String(), err)
		}
		if !v.Equal(v2) {
			t.Errorf("%q: round trip mismatch: %q vs %q", s, v.String(), v2.String())
		}
	}
}

func TestVersionOrdering(t *testing.T) {
	ordered := []string{
		"0.0.0.dev0", "0.0.0", "0.0.0+local",
		"1.0a1", "1.0b1", "1.0rc1", "1.0", "1.0.post1",
	}
	var prev Version
	for i, s := range ordered {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && !prev.LessThan(v) {
			t.Errorf("expected %q < %q", ordered[i-1], s)
		}
		prev = v
	}
}

func TestVersionLocalIgnoredWhenOneSideLacksIt(t *testing.T) {
	a, _ := ParseVersion("1.0")
	b, _ := ParseVersion("1.0+local")
	if compareIgnoringLocalIfNeeded(a, b) != 0 {
		t.Errorf("expected 1.0 == 1.0+local when comparing across local presence")
	}
}

func TestVersionRejectsEmpty(t *testing.T) {
	if _, err := ParseVersion(""); err == nil {
		t.Error("expected error for empty version")
	}
}

func TestSpecifierTildeRequiresTwoSegments(t *testing.T) {
	if _, err := ParseVersionSpecifiers("~=1"); err == nil {
		t.Error("expected ~=1 (single segment) to be rejected")
	}
	if _, err := ParseVersionSpecifiers("~=1.0"); err != nil {
		t.Errorf("expected ~=1.0 to parse: %v", err)
	}
}

func TestSpecifierCompatibleRelease(t *testing.T) {
	specs, err := ParseVersionSpecifiers("~=2.2")
	if err != nil {
		t.Fatal(err)
	}
	ok, _ := ParseVersion("2.3.0")
	notOk, _ := ParseVersion("3.0.0")
	tooLow, _ := ParseVersion("2.1.0")
	if !specs.Matches(ok) {
		t.Errorf("expected ~=2.2 to match 2.3.0")
	}
	if specs.Matches(notOk) {
		t.Errorf("expected ~=2.2 to exclude 3.0.0")
	}
	if specs.Matches(tooLow) {
		t.Errorf("expected ~=2.2 to exclude 2.1.0")
	}
}

func TestSpecifierWildcard(t *testing.T) {
	specs, err := ParseVersionSpecifiers("==1.2.*")
	if err != nil {
		t.Fatal(err)
	}
	match, _ := ParseVersion("1.2.5")
	noMatch, _ := ParseVersion("1.3.0")
	if !specs.Matches(match) {
		t.Error("expected ==1.2.* to match 1.2.5")
	}
	if specs.Matches(noMatch) {
		t.Error("expected ==1.2.* to exclude 1.3.0")
	}
}

func TestSpecifierConjunction(t *testing.T) {
	specs, err := ParseVersionSpecifiers(">=1.0,<2.0,!=1.5")
	if err != nil {
		t.Fatal(err)
	}
	v15, _ := ParseVersion("1.5")
	v14, _ := ParseVersion("1.4")
	v20, _ := ParseVersion("2.0")
	if specs.Matches(v15) {
		t.Error("expected 1.5 excluded")
	}
	if !specs.Matches(v14) {
		t.Error("expected 1.4 included")
	}
	if specs.Matches(v20) {
		t.Error("expected 2.0 excluded")
	}
}
