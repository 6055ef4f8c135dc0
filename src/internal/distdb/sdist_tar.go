package distdb

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// extractPkgInfoFromTar scans a .tar.gz/.tar.bz2 sdist for its top-level
// PKG-INFO member without unpacking the rest of the archive.
func extractPkgInfoFromTar(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, "", err
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".tar.bz2"):
		r = bzip2.NewReader(f)
	default:
		return nil, "", fmt.Errorf("distdb: unsupported sdist archive format %s", path)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, "PKG-INFO") {
			continue
		}
		// Prefer the top-level PKG-INFO: <dist>-<version>/PKG-INFO, not a
		// nested one belonging to a vendored dependency.
		if strings.Count(hdr.Name, "/") != 1 {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, "", err
		}
		return data, extractMetadataVersion(data), nil
	}
	return nil, "", fmt.Errorf("distdb: no top-level PKG-INFO found")
}
