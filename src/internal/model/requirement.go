package model

import (
	"fmt"
	"strings"
)

// SourceKind tags which of Requirement's source fields is populated.
type SourceKind int

const (
	SourceRegistry SourceKind = iota
	SourceURL
	SourceGit
	SourcePath
)

// GitSource is a VCS reference: a repository URL plus an optional ref
// (branch, tag, or commit).
type GitSource struct {
	URL string
	Ref string
}

// PathSource is a local filesystem source.
type PathSource struct {
	Path     string
	Editable bool
}

// Requirement is a parsed PEP 508 dependency declaration.
type Requirement struct {
	Name   PackageName
	Extras []Extra

	SourceKind SourceKind
	Specifiers VersionSpecifiers // SourceRegistry
	URL        string            // SourceURL
	Git        GitSource         // SourceGit
	Path       PathSource        // SourcePath

	Marker MarkerTree
}

// ParseRequirement parses a PEP 508 requirement string: "name[extras]
// specifier ; marker" or "name[extras] @ url ; marker".
func ParseRequirement(s string) (Requirement, error) {
	original := s
	rest := strings.TrimSpace(s)

	var markerPart string
	if idx := strings.Index(rest, ";"); idx >= 0 {
		markerPart = strings.TrimSpace(rest[idx+1:])
		rest = strings.TrimSpace(rest[:idx])
	}

	namePart := rest
	remainder := ""
	for i, c := range rest {
		if c == '[' || c == '@' || c == '=' || c == '<' || c == '>' || c == '!' || c == '~' || c == ' ' {
			namePart = rest[:i]
			remainder = strings.TrimSpace(rest[i:])
			break
		}
	}
	name, err := NewPackageName(namePart)
	if err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", original, err)
	}

	var extras []Extra
	if strings.HasPrefix(remainder, "[") {
		end := strings.Index(remainder, "]")
		if end < 0 {
			return Requirement{}, fmt.Errorf("requirement %q: unterminated extras list", original)
		}
		extraList := remainder[1:end]
		remainder = strings.TrimSpace(remainder[end+1:])
		for _, e := range strings.Split(extraList, ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			extra, err := NewExtra(e)
			if err != nil {
				return Requirement{}, fmt.Errorf("requirement %q: %w", original, err)
			}
			extras = append(extras, extra)
		}
	}

	req := Requirement{Name: name, Extras: extras}

	switch {
	case strings.HasPrefix(remainder, "@"):
		urlStr := strings.TrimSpace(remainder[1:])
		if urlStr == "" {
			return Requirement{}, fmt.Errorf("requirement %q: empty URL after '@'", original)
		}
		req.SourceKind = SourceURL
		req.URL = urlStr
		if strings.HasPrefix(urlStr, "git+") {
			req.SourceKind = SourceGit
			req.Git = parseGitURL(urlStr)
		}
	case remainder == "":
		req.SourceKind = SourceRegistry
	default:
		specs, err := ParseVersionSpecifiers(remainder)
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: %w", original, err)
		}
		req.SourceKind = SourceRegistry
		req.Specifiers = specs
	}

	if markerPart != "" {
		m, err := ParseMarker(markerPart)
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: %w", original, err)
		}
		req.Marker = m
	} else {
		req.Marker = MarkerTrue
	}

	return req, nil
}

func parseGitURL(s string) GitSource {
	rest := strings.TrimPrefix(s, "git+")
	if idx := strings.LastIndex(rest, "@"); idx > strings.Index(rest, "://") {
		return GitSource{URL: rest[:idx], Ref: rest[idx+1:]}
	}
	return GitSource{URL: rest}
}

// String renders the canonical PEP 508 form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name.String())
	if len(r.Extras) > 0 {
		b.WriteByte('[')
		for i, e := range r.Extras {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(e.String())
		}
		b.WriteByte(']')
	}
	switch r.SourceKind {
	case SourceURL:
		fmt.Fprintf(&b, " @ %s", r.URL)
	case SourceGit:
		if r.Git.Ref != "" {
			fmt.Fprintf(&b, " @ git+%s@%s", r.Git.URL, r.Git.Ref)
		} else {
			fmt.Fprintf(&b, " @ git+%s", r.Git.URL)
		}
	case SourcePath:
		fmt.Fprintf(&b, " @ %s", r.Path.Path)
	case SourceRegistry:
		if !r.Specifiers.Empty() {
			b.WriteString(r.Specifiers.String())
		}
	}
	if !r.Marker.IsTrue() {
		fmt.Fprintf(&b, " ; %s", r.Marker.String())
	}
	return b.String()
}
