package model

import "testing"

func TestMarkerParseRoundTrip(t *testing.T) {
	inputs := []string{
		`python_version >= "3.8"`,
		`sys_platform == "win32"`,
		`python_version >= "3.8" and sys_platform == "linux"`,
		`python_version >= "3.8" or sys_platform == "linux"`,
	}
	for _, s := range inputs {
		m, err := ParseMarker(s)
		if err != nil {
			t.Fatalf("ParseMarker(%q): %v", s, err)
		}
		m2, err := ParseMarker(m.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", m.String(), err)
		}
		if !m.Equal(m2) {
			t.Errorf("%q: round trip mismatch: %q vs %q", s, m.String(), m2.String())
		}
	}
}

func TestMarkerDoubleNegationIdempotent(t *testing.T) {
	m, err := ParseMarker(`sys_platform == "linux"`)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Not().Not().Equal(m) {
		t.Error("expected not(not(t)) == t")
	}
}

func TestMarkerAndIdempotent(t *testing.T) {
	m, _ := ParseMarker(`sys_platform == "linux"`)
	if !m.And(m).Equal(m) {
		t.Error("expected and(t, t) == t")
	}
}

func TestMarkerOrNegationSatisfiable(t *testing.T) {
	m, _ := ParseMarker(`sys_platform == "linux"`)
	tautology := m.Or(m.Not())
	if !tautology.IsSatisfiable() {
		t.Error("expected or(t, not t) to be satisfiable")
	}

	contradiction := m.And(m.Not())
	if contradiction.IsSatisfiable() {
		t.Error("expected and(t, not t) to be unsatisfiable")
	}
}

func TestMarkerImpliesAndDisjoint(t *testing.T) {
	linux, _ := ParseMarker(`sys_platform == "linux"`)
	win, _ := ParseMarker(`sys_platform == "win32"`)
	if !IsDisjoint(linux, win) {
		t.Error("expected linux and win32 atoms to be disjoint")
	}
	conj := linux.And(Atom(VarPythonVersion, MOpGreaterEq, "3.8"))
	if !Implies(conj, linux) {
		t.Error("expected conjunction to imply one of its conjuncts")
	}
}

func TestMarkerRestrict(t *testing.T) {
	m, _ := ParseMarker(`sys_platform == "linux" and python_version >= "3.8"`)
	restricted := m.Restrict(map[MarkerVar]string{VarSysPlatform: "linux"})
	if restricted.IsFalse() {
		t.Fatal("expected restriction on matching platform to remain satisfiable")
	}
	restrictedOut := m.Restrict(map[MarkerVar]string{VarSysPlatform: "win32"})
	if !restrictedOut.IsFalse() {
		t.Error("expected restriction on non-matching platform to become false")
	}
}

func TestMarkerUnknownVariableRejected(t *testing.T) {
	if _, err := ParseMarker(`bogus_variable == "x"`); err == nil {
		t.Error("expected unknown marker variable to be rejected")
	}
}
