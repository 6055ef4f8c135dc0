package model

import (
	"fmt"
	"strings"
)

// Operator is one of the PEP 440 comparison operators.
type Operator string

const (
	OpEqual       Operator = "=="
	OpNotEqual    Operator = "!="
	OpLess        Operator = "<"
	OpLessEqual   Operator = "<="
	OpGreater     Operator = ">"
	OpGreaterEq   Operator = ">="
	OpCompatible  Operator = "~="
	OpArbitraryEq Operator = "==="
)

// VersionSpecifier is a single (operator, version) constraint. A trailing
// ".*" on the version under == or != enables prefix matching.
type VersionSpecifier struct {
	Op      Operator
	Version Version
	// Wildcard is true when the specifier was written as "==X.Y.*" (or
	// "!=X.Y.*"), matching any release sharing the given prefix.
	Wildcard bool
	raw      string
}

// VersionSpecifiers is a conjunction ("and") of VersionSpecifier.
type VersionSpecifiers struct {
	items []VersionSpecifier
}

func (s VersionSpecifiers) Items() []VersionSpecifier { return append([]VersionSpecifier(nil), s.items...) }
func (s VersionSpecifiers) Empty() bool                { return len(s.items) == 0 }

// ParseVersionSpecifiers parses a comma-separated list of specifiers, e.g.
// ">=1.0,<2.0,!=1.5".
func ParseVersionSpecifiers(s string) (VersionSpecifiers, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VersionSpecifiers{}, nil
	}
	var out VersionSpecifiers
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec, err := parseOneSpecifier(part)
		if err != nil {
			return VersionSpecifiers{}, err
		}
		out.items = append(out.items, spec)
	}
	return out, nil
}

func parseOneSpecifier(s string) (VersionSpecifier, error) {
	ops := []Operator{OpArbitraryEq, OpCompatible, OpEqual, OpNotEqual, OpLessEqual, OpGreaterEq, OpLess, OpGreater}
	for _, op := range ops {
		if strings.HasPrefix(s, string(op)) {
			verStr := strings.TrimSpace(s[len(op):])
			if verStr == "" {
				return VersionSpecifier{}, fmt.Errorf("specifier %q: missing version", s)
			}
			if op == OpArbitraryEq {
				return VersionSpecifier{Op: op, Version: Version{original: verStr}, raw: verStr}, nil
			}
			wildcard := false
			parseTarget := verStr
			if (op == OpEqual || op == OpNotEqual) && strings.HasSuffix(verStr, ".*") {
				wildcard = true
				parseTarget = strings.TrimSuffix(verStr, ".*")
			}
			ver, err := ParseVersion(parseTarget)
			if err != nil {
				return VersionSpecifier{}, fmt.Errorf("specifier %q: %w", s, err)
			}
			if op == OpCompatible && len(ver.release) < 2 {
				return VersionSpecifier{}, fmt.Errorf("specifier %q: ~= requires at least two release segments", s)
			}
			return VersionSpecifier{Op: op, Version: ver, Wildcard: wildcard}, nil
		}
	}
	return VersionSpecifier{}, fmt.Errorf("specifier %q: unknown operator", s)
}

func (sp VersionSpecifier) String() string {
	if sp.Op == OpArbitraryEq {
		return string(sp.Op) + sp.raw
	}
	s := sp.Version.String()
	if sp.Wildcard {
		// Trim any local/pre info is not expected for wildcard specs;
		// render the release prefix plus ".*".
		s = sp.Version.String() + ".*"
	}
	return string(sp.Op) + s
}

func (s VersionSpecifiers) String() string {
	parts := make([]string, len(s.items))
	for i, it := range s.items {
		parts[i] = it.String()
	}
	return strings.Join(parts, ",")
}

// Matches reports whether v satisfies every specifier in s.
func (s VersionSpecifiers) Matches(v Version) bool {
	for _, sp := range s.items {
		if !sp.Matches(v) {
			return false
		}
	}
	return true
}

func (sp VersionSpecifier) Matches(v Version) bool {
	switch sp.Op {
	case OpArbitraryEq:
		return sp.raw == v.String() || sp.raw == v.original
	case OpEqual:
		if sp.Wildcard {
			return prefixMatch(v, sp.Version)
		}
		return compareIgnoringLocalIfNeeded(v, sp.Version) == 0
	case OpNotEqual:
		if sp.Wildcard {
			return !prefixMatch(v, sp.Version)
		}
		return compareIgnoringLocalIfNeeded(v, sp.Version) != 0
	case OpLess:
		return stripLocal(v).Compare(stripLocal(sp.Version)) < 0 && !isPrefixRelease(v, sp.Version)
	case OpLessEqual:
		return compareIgnoringLocalIfNeeded(v, sp.Version) <= 0
	case OpGreater:
		return stripLocal(v).Compare(stripLocal(sp.Version)) > 0 && !sp.Version.IsPostReleaseGreaterException(v)
	case OpGreaterEq:
		return compareIgnoringLocalIfNeeded(v, sp.Version) >= 0
	case OpCompatible:
		lower := sp.Version
		upper := compatibleUpperBound(sp.Version)
		return compareIgnoringLocalIfNeeded(v, lower) >= 0 && stripLocal(v).Compare(stripLocal(upper)) < 0
	}
	return false
}

// IsPostReleaseGreaterException implements the PEP 440 carve-out: ">V"
// excludes post-releases of V unless V itself is a post-release.
func (v Version) IsPostReleaseGreaterException(other Version) bool {
	if v.hasPost {
		return false
	}
	return sameRelease(v, other) && other.hasPost
}

func sameRelease(a, b Version) bool {
	return cmpReleases(a.release, b.release) == 0 && a.epoch == b.epoch
}

func isPrefixRelease(v, bound Version) bool {
	// "<V" excludes pre-releases of V itself is handled by normal ordering;
	// no special prefix exception applies to <, unlike >.
	return false
}

func compareIgnoringLocalIfNeeded(a, b Version) int {
	if len(a.local) == 0 || len(b.local) == 0 {
		return a.WithoutLocal().Compare(b.WithoutLocal())
	}
	return a.Compare(b)
}

func stripLocal(v Version) Version { return v.WithoutLocal() }

func prefixMatch(v, prefix Version) bool {
	if v.epoch != prefix.epoch {
		return false
	}
	if len(prefix.release) > len(v.release) {
		return false
	}
	for i, p := range prefix.release {
		if v.release[i] != p {
			return false
		}
	}
	return true
}

// compatibleUpperBound computes the exclusive upper bound for "~= X.Y...Z":
// increments the second-to-last release segment and drops the rest.
func compatibleUpperBound(v Version) Version {
	release := append([]int(nil), v.release...)
	release[len(release)-2]++
	release = release[:len(release)-1]
	return Version{epoch: v.epoch, release: release}
}
