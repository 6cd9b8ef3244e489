// Package fileutil provides the filesystem primitives behind trash and
// permanent moves: file and tree copies, rename-with-fallback moves, and
// best-effort directory sizing.
package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// CopyTree recursively copies the directory src to dst. Only regular files
// and directories are copied; symlinks and special files are skipped. Any
// error aborts the copy, leaving a partial dst for the caller to clean up.
func CopyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		switch {
		case entry.IsDir():
			if err := CopyTree(srcPath, dstPath); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := CopyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// MovePath renames src to dst, falling back to copy-and-delete when the two
// live on different filesystems. Works for both files and directories.
func MovePath(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		return moveAcrossDevices(src, dst)
	}
	return err
}

func moveAcrossDevices(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := CopyTree(src, dst); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}
	if err := CopyFileMode(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src)
}

// DirSize returns the recursive byte total of regular files under path.
// Unreadable entries contribute zero; symlinks are neither followed nor
// counted.
func DirSize(path string) int64 {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			total += DirSize(filepath.Join(path, entry.Name()))
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}
