package installer

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// recordEntry is one row of a wheel's RECORD file: path,digest,size. digest
// is empty for entries that don't carry one (RECORD itself, and generated
// .pyc files).
type recordEntry struct {
	Path   string
	Digest string
	Size   string
}

func readRecord(path string) ([]recordEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	entries := make([]recordEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		e := recordEntry{Path: row[0]}
		if len(row) > 1 {
			e.Digest = row[1]
		}
		if len(row) > 2 {
			e.Size = row[2]
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// verifyRecord checks every RECORD entry that carries a digest against the
// file actually present under wheelDir, per spec step 2.
func verifyRecord(wheelDir string, entries []recordEntry) error {
	for _, e := range entries {
		if e.Digest == "" {
			continue
		}
		full := filepath.Join(wheelDir, filepath.FromSlash(e.Path))
		digest, size, err := hashFile(full)
		if err != nil {
			return fmt.Errorf("RECORD mismatch: %s: %w", e.Path, err)
		}
		if digest != e.Digest {
			return fmt.Errorf("RECORD mismatch: %s: digest %s does not match recorded %s", e.Path, digest, e.Digest)
		}
		if e.Size != "" {
			wantSize, err := strconv.ParseInt(e.Size, 10, 64)
			if err == nil && wantSize != size {
				return fmt.Errorf("RECORD mismatch: %s: size %d does not match recorded %d", e.Path, size, wantSize)
			}
		}
	}
	return nil
}

// hashFile computes a RECORD-style "sha256=<urlsafe-base64-no-padding>"
// digest and the file's size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	sum := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return "sha256=" + sum, n, nil
}

// rewriteRecord recomputes hashes for every installed path (absolute) and
// writes a fresh RECORD at recordPath, per spec step 5. Paths are recorded
// relative to siteDir when they fall under it (the common case: everything
// but .data/scripts launchers); entries that land elsewhere (the
// environment's scripts directory) keep their path relative to siteDir via
// ".." segments, since RECORD has no notion of multiple install roots.
// RECORD's own entry is written with an empty digest and size, matching
// the convention the file describes for itself.
func rewriteRecord(siteDir, recordPath string, installedAbs []string) error {
	f, err := os.Create(recordPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for _, abs := range installedAbs {
		if abs == recordPath {
			continue
		}
		rel, err := filepath.Rel(siteDir, abs)
		if err != nil {
			rel = abs
		}
		digest, size, err := hashFile(abs)
		if err != nil {
			return err
		}
		if err := w.Write([]string{filepath.ToSlash(rel), digest, strconv.FormatInt(size, 10)}); err != nil {
			return err
		}
	}

	recordRel, err := filepath.Rel(siteDir, recordPath)
	if err != nil {
		recordRel = recordPath
	}
	return w.Write([]string{filepath.ToSlash(recordRel), "", ""})
}
