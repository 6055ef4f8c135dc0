// Package model implements the name/version/marker/requirement data model
// of PEP 440, PEP 503, and PEP 508: canonical forms, parsing, rendering,
// and comparison. Values are immutable once parsed.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// nameToken matches a single PEP 503 "run" component of a package name:
// ASCII letters, digits, and the separators -, _, . collapsed on normalize.
var nameToken = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// PackageName is a normalized, non-empty Python distribution name. The
// original spelling is retained for display; equality and hashing use the
// normalized form only.
type PackageName struct {
	raw  string
	norm string
}

// NewPackageName parses and normalizes s per PEP 503.
func NewPackageName(s string) (PackageName, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return PackageName{}, fmt.Errorf("package name: empty")
	}
	if !nameToken.MatchString(trimmed) {
		return PackageName{}, fmt.Errorf("package name %q: invalid character (names must be ASCII letters, digits, -, _, .)", s)
	}
	return PackageName{raw: trimmed, norm: normalizeName(trimmed)}, nil
}

func normalizeName(s string) string {
	collapsed := nameSeparators.ReplaceAllString(s, "-")
	return strings.ToLower(collapsed)
}

// String renders the original (non-normalized) spelling.
func (n PackageName) String() string { return n.raw }

// Normalized renders the canonical comparison form.
func (n PackageName) Normalized() string { return n.norm }

// Equal compares two names by normalized form.
func (n PackageName) Equal(other PackageName) bool { return n.norm == other.norm }

// IsZero reports whether n is the zero value (never produced by NewPackageName).
func (n PackageName) IsZero() bool { return n.norm == "" }

// Extra is a normalized optional-feature name; extras share PackageName's
// normalization rules per PEP 685.
type Extra struct {
	raw  string
	norm string
}

func NewExtra(s string) (Extra, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Extra{}, fmt.Errorf("extra name: empty")
	}
	if !nameToken.MatchString(trimmed) {
		return Extra{}, fmt.Errorf("extra name %q: invalid character", s)
	}
	return Extra{raw: trimmed, norm: normalizeName(trimmed)}, nil
}

func (e Extra) String() string     { return e.raw }
func (e Extra) Normalized() string { return e.norm }
func (e Extra) Equal(o Extra) bool { return e.norm == o.norm }
