package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	if err := probeWrite(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// probeWrite creates and removes a uniquely named file in dir.
// access(2) consults permission bits only, which report success on
// read-only mounts; an actual write does not.
func probeWrite(dir string) error {
	probe := filepath.Join(dir, fmt.Sprintf(".winnow_perm_check_%d_%d", os.Getpid(), time.Now().UnixNano()))
	file, err := os.OpenFile(probe, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file.Close()
	return os.Remove(probe)
}

// EnsureDirectory creates the directory when missing, then runs the
// standard access checks. Trash and permanent siblings come into being
// this way on first use.
func EnsureDirectory(name, path string) Result {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
		}
	}
	return CheckDirectoryAccess(name, path)
}

// CheckDatabaseDir verifies that the directory holding the catalog
// database accepts writes, creating it when missing.
func CheckDatabaseDir(dbPath string) Result {
	return EnsureDirectory("Database directory", filepath.Dir(dbPath))
}

// CheckFreeSpace reports the space available to unprivileged writers on
// the filesystem holding path. It is informational and never fails the
// run unless the filesystem cannot be queried.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", path, humanize.IBytes(uint64(free)))}
}
