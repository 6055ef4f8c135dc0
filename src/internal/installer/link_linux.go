//go:build linux

package installer

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryReflink attempts a copy-on-write clone via the FICLONE ioctl, the
// same mechanism "cp --reflink" uses on btrfs/xfs. Callers fall back to a
// plain copy on any error, including ENOTSUP on filesystems without CoW
// support.
func tryReflink(src, dest string) error {
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

	return unix.IoctlFileClone(int(out.Fd()), int(in.Fd()))
}
