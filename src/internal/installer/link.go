package installer

import (
	"fmt"
	"io"
	"os"
)

// placeFile puts the contents of src at dest using the requested link
// mode. clone falls back to a plain copy wherever the filesystem doesn't
// support copy-on-write reflinks (see link_linux.go / link_other.go);
// hardlink and symlink surface the underlying filesystem error (e.g.
// cross-device) as an install-time error rather than silently falling
// back, per the link-mode-unsupported-by-filesystem error kind.
func placeFile(src, dest string, mode LinkMode) error {
	_ = os.Remove(dest)
	switch mode {
	case LinkHardlink:
		if err := os.Link(src, dest); err != nil {
			return fmt.Errorf("hardlink %s: %w", dest, err)
		}
		return nil
	case LinkSymlink:
		if err := os.Symlink(src, dest); err != nil {
			return fmt.Errorf("symlink %s: %w", dest, err)
		}
		return nil
	case LinkClone:
		if err := tryReflink(src, dest); err == nil {
			return nil
		}
		return copyFile(src, dest)
	default: // LinkCopy
		return copyFile(src, dest)
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
