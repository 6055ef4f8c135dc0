package model

import (
	"fmt"
	"strconv"
	"strings"
)

// prereleaseKind orders pre-release phases: alpha < beta < rc.
type prereleaseKind int

const (
	prereleaseNone prereleaseKind = iota
	prereleaseAlpha
	prereleaseBeta
	prereleaseRC
)

// Version is a parsed PEP 440 release, immutable once constructed.
//
// Ordering follows PEP 440 exactly: epoch, then release segments
// (padded with zeros to the longer operand's length), then pre-release
// (absence sorts after presence, i.e. 1.0 > 1.0rc1), then post-release
// (absence sorts before presence, i.e. 1.0 < 1.0.post1), then dev-release
// (presence sorts before absence, i.e. 1.0.dev1 < 1.0), then the local
// segment (absence sorts before presence, i.e. 1.0 < 1.0+local; compared
// component by component when both operands carry one).
type Version struct {
	epoch    int
	release  []int
	pre      prereleaseKind
	preNum   int
	hasPost  bool
	post     int
	hasDev   bool
	dev      int
	local    []localSegment
	original string
}

// localSegment is one dot-separated component of a local version label;
// numeric components compare numerically and sort after alphanumeric ones.
type localSegment struct {
	numeric bool
	num     int
	text    string
}

var prereleaseSpellings = map[string]prereleaseKind{
	"a": prereleaseAlpha, "alpha": prereleaseAlpha,
	"b": prereleaseBeta, "beta": prereleaseBeta,
	"c": prereleaseRC, "rc": prereleaseRC, "pre": prereleaseRC, "preview": prereleaseRC,
}

// ParseVersion parses s per PEP 440. It accepts an optional leading "v",
// an optional epoch ("N!"), a dotted release segment, an optional
// pre-release, an optional post-release ("post"/"rev"/"r" or ".postN"
// shorthand "-N"), an optional dev-release, and an optional local segment
// ("+label").
func ParseVersion(s string) (Version, error) {
	original := s
	rest := strings.TrimSpace(s)
	rest = strings.TrimPrefix(rest, "v")
	if rest == "" {
		return Version{}, fmt.Errorf("version %q: empty", original)
	}

	v := Version{original: original}

	rest = consumeEpoch(rest, &v)

	release, rem, err := consumeRelease(rest)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", original, err)
	}
	v.release = release
	rest = rem

	rest, err = consumePre(rest, &v)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", original, err)
	}

	rest = consumePost(rest, &v)
	rest = consumeDev(rest, &v)
	rest, err = consumeLocal(rest, &v)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", original, err)
	}

	if rest != "" {
		return Version{}, fmt.Errorf("version %q: unexpected trailing %q", original, rest)
	}
	return v, nil
}

func consumeEpoch(s string, v *Version) string {
	if idx := strings.IndexByte(s, '!'); idx > 0 {
		if n, err := strconv.Atoi(s[:idx]); err == nil {
			v.epoch = n
			return s[idx+1:]
		}
	}
	return s
}

func consumeRelease(s string) ([]int, string, error) {
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	segStr := s[:i]
	rem := s[i:]
	if segStr == "" {
		return nil, "", fmt.Errorf("missing release segment")
	}
	segStr = strings.Trim(segStr, ".")
	parts := strings.Split(segStr, ".")
	release := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, "", fmt.Errorf("empty release component")
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, "", fmt.Errorf("invalid release component %q", p)
		}
		release = append(release, n)
	}
	return release, rem, nil
}

func consumePre(s string, v *Version) (string, error) {
	s = strings.TrimPrefix(s, ".")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "_")
	i := 0
	for i < len(s) && isAlpha(s[i]) {
		i++
	}
	if i == 0 {
		return s, nil
	}
	word := strings.ToLower(s[:i])
	kind, ok := prereleaseSpellings[word]
	if !ok {
		return s, nil
	}
	rest := s[i:]
	rest = strings.TrimPrefix(rest, ".")
	rest = strings.TrimPrefix(rest, "-")
	rest = strings.TrimPrefix(rest, "_")
	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	num := 0
	if j > 0 {
		num, _ = strconv.Atoi(rest[:j])
	}
	v.pre = kind
	v.preNum = num
	return rest[j:], nil
}

func consumePost(s string, v *Version) string {
	// ".postN" / "postN" / "-N" shorthand / "revN" / "rN"
	if strings.HasPrefix(s, "-") && len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
		j := 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		n, _ := strconv.Atoi(s[1:j])
		v.hasPost = true
		v.post = n
		return s[j:]
	}
	rest := strings.TrimPrefix(s, ".")
	rest = strings.TrimPrefix(rest, "-")
	rest = strings.TrimPrefix(rest, "_")
	for _, kw := range []string{"post", "rev", "r"} {
		if strings.HasPrefix(rest, kw) {
			after := rest[len(kw):]
			after = strings.TrimPrefix(after, ".")
			after = strings.TrimPrefix(after, "-")
			after = strings.TrimPrefix(after, "_")
			j := 0
			for j < len(after) && after[j] >= '0' && after[j] <= '9' {
				j++
			}
			num := 0
			if j > 0 {
				num, _ = strconv.Atoi(after[:j])
			}
			v.hasPost = true
			v.post = num
			return after[j:]
		}
	}
	return s
}

func consumeDev(s string, v *Version) string {
	rest := strings.TrimPrefix(s, ".")
	rest = strings.TrimPrefix(rest, "-")
	rest = strings.TrimPrefix(rest, "_")
	if !strings.HasPrefix(rest, "dev") {
		return s
	}
	after := rest[len("dev"):]
	j := 0
	for j < len(after) && after[j] >= '0' && after[j] <= '9' {
		j++
	}
	num := 0
	if j > 0 {
		num, _ = strconv.Atoi(after[:j])
	}
	v.hasDev = true
	v.dev = num
	return after[j:]
}

func consumeLocal(s string, v *Version) (string, error) {
	if s == "" {
		return s, nil
	}
	if !strings.HasPrefix(s, "+") {
		return s, fmt.Errorf("unexpected trailing %q", s)
	}
	label := s[1:]
	if label == "" {
		return "", fmt.Errorf("empty local version label")
	}
	for _, c := range label {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-' || c == '_') {
			return "", fmt.Errorf("invalid local version label %q", label)
		}
	}
	normalized := strings.NewReplacer("-", ".", "_", ".").Replace(strings.ToLower(label))
	for _, part := range strings.Split(normalized, ".") {
		seg := localSegment{text: part}
		if n, err := strconv.Atoi(part); err == nil {
			seg.numeric = true
			seg.num = n
		}
		v.local = append(v.local, seg)
	}
	return "", nil
}

func isAlpha(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// String renders the canonical PEP 440 form (not necessarily the original
// input spelling, but re-parses to an equal Version).
func (v Version) String() string {
	var b strings.Builder
	if v.epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.epoch)
	}
	for i, seg := range v.release {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%d", seg)
	}
	switch v.pre {
	case prereleaseAlpha:
		fmt.Fprintf(&b, "a%d", v.preNum)
	case prereleaseBeta:
		fmt.Fprintf(&b, "b%d", v.preNum)
	case prereleaseRC:
		fmt.Fprintf(&b, "rc%d", v.preNum)
	}
	if v.hasPost {
		fmt.Fprintf(&b, ".post%d", v.post)
	}
	if v.hasDev {
		fmt.Fprintf(&b, ".dev%d", v.dev)
	}
	if len(v.local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.local {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.text)
		}
	}
	return b.String()
}

// Release returns the numeric release segments (e.g. [1,2,3] for "1.2.3").
func (v Version) Release() []int { return append([]int(nil), v.release...) }

// IsPrerelease reports whether v carries a pre-release or dev-release
// component (post-releases alone do not count).
func (v Version) IsPrerelease() bool { return v.pre != prereleaseNone || v.hasDev }

// IsDevRelease reports whether v carries a dev segment.
func (v Version) IsDevRelease() bool { return v.hasDev }

// IsLocal reports whether v carries a local version segment.
func (v Version) IsLocal() bool { return len(v.local) > 0 }

// WithoutLocal returns a copy of v with the local segment cleared, used
// when comparing across operands where one lacks a local segment.
func (v Version) WithoutLocal() Version {
	v.local = nil
	return v
}

// Compare implements PEP 440 total ordering. It returns -1, 0, or 1.
func (a Version) Compare(b Version) int {
	if a.epoch != b.epoch {
		return cmpInt(a.epoch, b.epoch)
	}
	if c := cmpReleases(a.release, b.release); c != 0 {
		return c
	}
	if c := cmpPre(a, b); c != 0 {
		return c
	}
	if c := cmpPost(a, b); c != 0 {
		return c
	}
	if c := cmpDev(a, b); c != 0 {
		return c
	}
	// Local segment: a release with no local segment sorts before the
	// same release with one (PEP 440); when both carry a local segment,
	// compare it component by component. Specifier *matching* additionally
	// ignores the local segment when either operand lacks one — see
	// compareIgnoringLocalIfNeeded in specifier.go, which is the place
	// that rule actually applies.
	switch {
	case len(a.local) == 0 && len(b.local) == 0:
		return 0
	case len(a.local) == 0:
		return -1
	case len(b.local) == 0:
		return 1
	default:
		return cmpLocal(a.local, b.local)
	}
}

func (a Version) Equal(b Version) bool   { return a.Compare(b) == 0 }
func (a Version) LessThan(b Version) bool { return a.Compare(b) < 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpReleases(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if c := cmpInt(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// preRank gives a total order across "no pre-release" (ranked highest,
// since 1.0 > 1.0rc1) and the three prerelease phases.
func preRank(v Version) (int, int) {
	if v.pre == prereleaseNone {
		return 4, 0
	}
	return int(v.pre), v.preNum
}

func cmpPre(a, b Version) int {
	ar, an := preRank(a)
	br, bn := preRank(b)
	if ar != br {
		return cmpInt(ar, br)
	}
	return cmpInt(an, bn)
}

func cmpPost(a, b Version) int {
	// Absence of post sorts before presence: 1.0 < 1.0.post1
	av, bv := -1, -1
	if a.hasPost {
		av = a.post
	}
	if b.hasPost {
		bv = b.post
	}
	return cmpInt(av, bv)
}

func cmpDev(a, b Version) int {
	// Presence of dev sorts before absence: 1.0.dev1 < 1.0
	av, bv := 1<<30, 1<<30
	if a.hasDev {
		av = a.dev
	}
	if b.hasDev {
		bv = b.dev
	}
	return cmpInt(av, bv)
}

func cmpLocal(a, b []localSegment) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if i >= len(a) {
			return -1 // shorter local sorts lower when a prefix of b
		}
		if i >= len(b) {
			return 1
		}
		as, bs := a[i], b[i]
		if as.numeric && bs.numeric {
			if c := cmpInt(as.num, bs.num); c != 0 {
				return c
			}
			continue
		}
		if as.numeric != bs.numeric {
			// numeric segments sort after alphanumeric ones at the same index
			if as.numeric {
				return 1
			}
			return -1
		}
		if as.text != bs.text {
			if as.text < bs.text {
				return -1
			}
			return 1
		}
	}
	return 0
}
