package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"winnow/internal/library"
	"winnow/internal/services"
	"winnow/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_LeavesNoProbe(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDirectoryAccess("test", dir); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("probe file left behind: %v", entries)
	}
}

func TestEnsureDirectory_CreatesMissing(t *testing.T) {
	target := filepath.Join(t.TempDir(), "library_trash")
	result := EnsureDirectory("test", target)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: info=%v err=%v", info, err)
	}
}

func TestCheckFreeSpace_Reports(t *testing.T) {
	result := CheckFreeSpace("Free space", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "free") {
		t.Fatalf("expected free-space detail, got: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_CreatesSiblingsAndPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Library.Roots[0]

	results := RunAll(cfg)
	// root + trash + permanent + free space + database dir
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}

	trashDir, permanentDir, err := library.DeriveSiblings(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{trashDir, permanentDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("sibling %s not created: info=%v err=%v", dir, info, err)
		}
	}
}

func TestValidateStorage_OK(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := ValidateStorage(cfg); err != nil {
		t.Fatalf("expected validation to pass: %v", err)
	}
}

func TestValidateStorage_FailsForMissingRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Library.Roots = []string{filepath.Join(testsupport.BaseDir(cfg), "absent")}

	err := ValidateStorage(cfg)
	if err == nil {
		t.Fatal("expected validation to fail for missing root")
	}
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}

func TestValidateStorage_FailsForFileRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fileRoot := filepath.Join(testsupport.BaseDir(cfg), "not-a-dir")
	if err := os.WriteFile(fileRoot, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Library.Roots = []string{fileRoot}

	if err := ValidateStorage(cfg); err == nil {
		t.Fatal("expected validation to fail for file root")
	}
}
