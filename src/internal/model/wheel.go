package model

import (
	"fmt"
	"strings"
)

// WheelFilename is the parsed form of a PEP 427 wheel filename:
// {distribution}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type WheelFilename struct {
	Distribution string
	Version      Version
	// BuildTag, if present, is retained in the model (see DESIGN.md's Open
	// Question decision). It is parsed and rendered only: neither
	// compatibility checks nor the resolver's candidate ordering consult it.
	BuildTag     string
	PythonTags   []string
	ABITags      []string
	PlatformTags []string
}

// ParseWheelFilename parses a ".whl" filename with 5 or 6 dash-separated
// components.
func ParseWheelFilename(s string) (WheelFilename, error) {
	name := s
	if !strings.HasSuffix(strings.ToLower(name), ".whl") {
		return WheelFilename{}, fmt.Errorf("wheel filename %q: must end in .whl", s)
	}
	name = name[:len(name)-4]
	if name == "" {
		return WheelFilename{}, fmt.Errorf("wheel filename %q: must have a version", s)
	}
	parts := strings.Split(name, "-")
	if len(parts) != 5 && len(parts) != 6 {
		return WheelFilename{}, fmt.Errorf("wheel filename %q: expected 5 or 6 dash-separated components, got %d", s, len(parts))
	}

	wf := WheelFilename{Distribution: parts[0]}
	ver, err := ParseVersion(parts[1])
	if err != nil {
		return WheelFilename{}, fmt.Errorf("wheel filename %q: %w", s, err)
	}
	wf.Version = ver

	idx := 2
	if len(parts) == 6 {
		build := parts[2]
		if build == "" || !(build[0] >= '0' && build[0] <= '9') {
			return WheelFilename{}, fmt.Errorf("wheel filename %q: build tag must start with a digit", s)
		}
		wf.BuildTag = build
		idx = 3
	}
	wf.PythonTags = strings.Split(parts[idx], ".")
	wf.ABITags = strings.Split(parts[idx+1], ".")
	wf.PlatformTags = strings.Split(parts[idx+2], ".")
	return wf, nil
}

func (w WheelFilename) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s-%s", w.Distribution, w.Version.String())
	if w.BuildTag != "" {
		fmt.Fprintf(&b, "-%s", w.BuildTag)
	}
	fmt.Fprintf(&b, "-%s-%s-%s.whl", strings.Join(w.PythonTags, "."), strings.Join(w.ABITags, "."), strings.Join(w.PlatformTags, "."))
	return b.String()
}

// PlatformTag is one (python, abi, platform) entry in a platform's ordered
// compatibility tag list; the list's index order is its preference order
// (index 0 is most preferred).
type PlatformTag struct {
	Python   string
	ABI      string
	Platform string
}

// IsCompatible reports whether w has at least one (py, abi, plat)
// combination present in tags.
func (w WheelFilename) IsCompatible(tags []PlatformTag) bool {
	_, ok := w.bestTagIndex(tags)
	return ok
}

// Priority returns the index of the most-preferred matching tag in tags,
// lower is better; ok is false if no tag matches.
func (w WheelFilename) Priority(tags []PlatformTag) (int, bool) {
	return w.bestTagIndex(tags)
}

func (w WheelFilename) bestTagIndex(tags []PlatformTag) (int, bool) {
	pySet := toSet(w.PythonTags)
	abiSet := toSet(w.ABITags)
	platSet := toSet(w.PlatformTags)
	for i, t := range tags {
		if pySet[t.Python] && abiSet[t.ABI] && platSet[t.Platform] {
			return i, true
		}
	}
	return 0, false
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

// SdistExt enumerates the supported source-archive extensions.
type SdistExt string

const (
	SdistTarGz  SdistExt = ".tar.gz"
	SdistTarBz2 SdistExt = ".tar.bz2"
	SdistTarZst SdistExt = ".tar.zst"
	SdistZip    SdistExt = ".zip"
)

// SdistFilename is the parsed form of a source-distribution filename:
// {distribution}-{version}{ext}.
type SdistFilename struct {
	Distribution string
	Version      Version
	Ext          SdistExt
}

var sdistExts = []SdistExt{SdistTarGz, SdistTarBz2, SdistTarZst, SdistZip}

// ParseSdistFilename parses a source-distribution filename.
func ParseSdistFilename(s string) (SdistFilename, error) {
	for _, ext := range sdistExts {
		if strings.HasSuffix(strings.ToLower(s), string(ext)) {
			base := s[:len(s)-len(ext)]
			idx := strings.LastIndex(base, "-")
			if idx <= 0 {
				return SdistFilename{}, fmt.Errorf("sdist filename %q: missing version separator", s)
			}
			ver, err := ParseVersion(base[idx+1:])
			if err != nil {
				return SdistFilename{}, fmt.Errorf("sdist filename %q: %w", s, err)
			}
			return SdistFilename{Distribution: base[:idx], Version: ver, Ext: ext}, nil
		}
	}
	return SdistFilename{}, fmt.Errorf("sdist filename %q: unrecognized archive extension", s)
}

func (s SdistFilename) String() string {
	return fmt.Sprintf("%s-%s%s", s.Distribution, s.Version.String(), s.Ext)
}
