// Package fsutil holds the file copy helpers shared by the workspace and the ad-hoc
// feature collector.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyFile copies src to dst on fs, creating dst's parent directories. dst keeps the
// source permissions plus owner write, so copies can be rewritten in place. An existing
// dst is truncated.
func CopyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()|0200)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// CopyTree recursively copies the directory src into dst. Files already present in dst
// are overwritten; other files in dst are kept. Symbolic links are followed: a link to a
// directory is copied as that directory's contents. A link back into a directory being
// copied is an error.
func CopyTree(fs afero.Fs, src, dst string) error {
	return copyTree(fs, src, dst, map[string]bool{realPath(src): true})
}

func copyTree(fs afero.Fs, src, dst string, active map[string]bool) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := fs.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to resolve link %s: %w", path, err)
			}
			if !resolved.IsDir() {
				return CopyFile(fs, path, target)
			}
			linked := realPath(path)
			if active[linked] {
				return fmt.Errorf("link %s points back into the copied tree", path)
			}
			active[linked] = true
			defer delete(active, linked)
			return copyTree(fs, path+string(filepath.Separator), target, active)
		}

		if info.IsDir() {
			if err := fs.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil
		}
		return CopyFile(fs, path, target)
	})
}

// realPath resolves links on the host filesystem; paths on in-memory filesystems are
// returned cleaned.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
