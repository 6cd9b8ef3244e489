package preflight

import (
	"fmt"

	"winnow/internal/config"
	"winnow/internal/library"
	"winnow/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every storage check for the given config and reports
// each outcome. Trash and permanent siblings are created when missing,
// the same way the startup validation does.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, root := range cfg.Library.Roots {
		results = append(results, CheckDirectoryAccess("Library root", root))

		trashDir, permanentDir, err := library.DeriveSiblings(root)
		if err != nil {
			results = append(results, Result{Name: "Sibling directories", Detail: err.Error()})
			continue
		}
		results = append(results, EnsureDirectory("Trash directory", trashDir))
		results = append(results, EnsureDirectory("Permanent directory", permanentDir))
		results = append(results, CheckFreeSpace("Free space", root))
	}

	results = append(results, CheckDatabaseDir(cfg.Database.Path))
	return results
}

// ValidateStorage gates daemon startup: every root must be usable and
// every sibling creatable before any engine touches the filesystem. The
// first failure aborts.
func ValidateStorage(cfg *config.Config) error {
	if cfg == nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "validate storage",
			"configuration is required", nil)
	}

	for _, root := range cfg.Library.Roots {
		if res := CheckDirectoryAccess("Library root", root); !res.Passed {
			return storageError("library root", res)
		}
		trashDir, permanentDir, err := library.DeriveSiblings(root)
		if err != nil {
			return err
		}
		if res := EnsureDirectory("Trash directory", trashDir); !res.Passed {
			return storageError("trash directory", res)
		}
		if res := EnsureDirectory("Permanent directory", permanentDir); !res.Passed {
			return storageError("permanent directory", res)
		}
	}

	if res := CheckDatabaseDir(cfg.Database.Path); !res.Passed {
		return storageError("database directory", res)
	}
	return nil
}

func storageError(subject string, res Result) error {
	return services.Wrap(services.ErrFilesystem, "preflight", "validate storage",
		fmt.Sprintf("%s: %s", subject, res.Detail), nil)
}
