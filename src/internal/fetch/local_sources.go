package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/pkgctl/pkgctl/src/internal/distdb"
)

// cloneGit clones dist.GitURL at dist.GitRef directly into dest, reusing
// go-git the same way distdb's metadata path does for the in-memory
// clone, but to a real working tree here since the installer needs the
// full source on disk.
func cloneGit(ctx context.Context, dist distdb.Distribution, dest string) error {
	opts := &git.CloneOptions{URL: dist.GitURL, Depth: 1}
	if dist.GitRef != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(dist.GitRef)
		opts.SingleBranch = true
	}
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		if dist.GitRef == "" {
			return err
		}
		// Ref may be a tag or commit SHA rather than a branch.
		repo, err2 := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: dist.GitURL})
		if err2 != nil {
			return err2
		}
		w, err2 := repo.Worktree()
		if err2 != nil {
			return err2
		}
		return w.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(dist.GitRef)})
	}
	return nil
}

// copyLocalPath copies a local source tree. Editable sources are copied the
// same way; no .pth entry pointing at the original tree is written.
func copyLocalPath(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
