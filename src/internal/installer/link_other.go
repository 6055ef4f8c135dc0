//go:build !linux

package installer

import "fmt"

// tryReflink has no portable equivalent outside Linux's FICLONE ioctl;
// placeFile's clone mode falls straight through to a plain copy.
func tryReflink(src, dest string) error {
	return fmt.Errorf("reflink not supported on this platform")
}
