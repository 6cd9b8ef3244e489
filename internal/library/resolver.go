// Package library resolves which configured root owns a media path and
// derives the sibling trash and permanent directories every filesystem move
// targets. It is pure path arithmetic; nothing here touches disk or the
// catalog.
package library

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"winnow/internal/services"
)

// Suffixes appended to a root's own directory name to form its siblings.
// `/srv/media` keeps its trash at `/srv/media_trash`, never inside the root,
// so rescans and size sums of the root stay unaffected by trashed content.
const (
	TrashSuffix     = "_trash"
	PermanentSuffix = "_permanent"
)

// DeriveSiblings returns the trash and permanent directories for a library
// root. A root with no usable parent or name (the filesystem root, ".", an
// empty string) cannot host siblings and is rejected.
func DeriveSiblings(root string) (string, string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(root))
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", "", services.Wrap(services.ErrConfiguration, "library", "derive siblings",
			fmt.Sprintf("root %q has no usable name", root), nil)
	}
	parent := filepath.Dir(cleaned)
	name := filepath.Base(cleaned)
	if parent == cleaned || name == string(filepath.Separator) || name == "." || name == ".." {
		return "", "", services.Wrap(services.ErrConfiguration, "library", "derive siblings",
			fmt.Sprintf("root %q has no parent to host trash and permanent siblings", root), nil)
	}
	return filepath.Join(parent, name+TrashSuffix), filepath.Join(parent, name+PermanentSuffix), nil
}

// Resolver maps absolute item paths onto the configured library roots.
type Resolver struct {
	roots []string
}

// NewResolver builds a resolver over the given roots. Roots are cleaned and
// deduplicated; each must be able to derive its sibling directories.
func NewResolver(roots []string) (*Resolver, error) {
	cleaned := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		path := filepath.Clean(trimmed)
		if _, _, err := DeriveSiblings(path); err != nil {
			return nil, err
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		cleaned = append(cleaned, path)
	}
	if len(cleaned) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "library", "new resolver",
			"at least one library root is required", nil)
	}
	return &Resolver{roots: cleaned}, nil
}

// Roots returns the configured roots in their configured order.
func (r *Resolver) Roots() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// RootFor selects the root owning path. With nested roots the most specific
// match wins: `/media/extra/X` resolves to `/media/extra`, not `/media`.
func (r *Resolver) RootFor(path string) (string, error) {
	cleaned := filepath.Clean(path)
	best := ""
	bestDepth := -1
	for _, root := range r.roots {
		if !isPathPrefix(root, cleaned) {
			continue
		}
		if depth := componentCount(root); depth > bestDepth {
			best = root
			bestDepth = depth
		}
	}
	if best == "" {
		return "", services.Wrap(services.ErrNoMatchingRoot, "library", "resolve root",
			fmt.Sprintf("no configured root owns %q", path), nil)
	}
	return best, nil
}

// Owns reports whether any configured root is a prefix of path.
func (r *Resolver) Owns(path string) bool {
	_, err := r.RootFor(path)
	return err == nil
}

// IsRoot reports whether path is exactly one of the configured roots.
func (r *Resolver) IsRoot(path string) bool {
	cleaned := filepath.Clean(path)
	for _, root := range r.roots {
		if root == cleaned {
			return true
		}
	}
	return false
}

// TrashPathFor maps an item path to its location under the owning root's
// trash sibling, preserving intermediate structure: `<root>/Show/Season 1`
// becomes `<root>_trash/Show/Season 1`.
func (r *Resolver) TrashPathFor(path string) (string, error) {
	return r.siblingPathFor(path, TrashSuffix)
}

// PermanentPathFor maps an item path to its location under the owning root's
// permanent sibling.
func (r *Resolver) PermanentPathFor(path string) (string, error) {
	return r.siblingPathFor(path, PermanentSuffix)
}

func (r *Resolver) siblingPathFor(path, suffix string) (string, error) {
	root, err := r.RootFor(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "library", "resolve sibling",
			fmt.Sprintf("relativize %q against root %q", path, root), err)
	}
	if rel == "." {
		return "", services.Wrap(services.ErrValidation, "library", "resolve sibling",
			fmt.Sprintf("path %q is a library root, not an item", path), nil)
	}
	trashDir, permanentDir, err := DeriveSiblings(root)
	if err != nil {
		return "", err
	}
	base := trashDir
	if suffix == PermanentSuffix {
		base = permanentDir
	}
	return filepath.Join(base, rel), nil
}

// TrashDirs returns the sorted, deduplicated trash siblings for every root.
func (r *Resolver) TrashDirs() []string {
	return r.siblingDirs(TrashSuffix)
}

// PermanentDirs returns the sorted, deduplicated permanent siblings for
// every root.
func (r *Resolver) PermanentDirs() []string {
	return r.siblingDirs(PermanentSuffix)
}

func (r *Resolver) siblingDirs(suffix string) []string {
	seen := make(map[string]struct{}, len(r.roots))
	dirs := make([]string, 0, len(r.roots))
	for _, root := range r.roots {
		trashDir, permanentDir, err := DeriveSiblings(root)
		if err != nil {
			continue
		}
		dir := trashDir
		if suffix == PermanentSuffix {
			dir = permanentDir
		}
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func isPathPrefix(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func componentCount(path string) int {
	return len(strings.Split(filepath.Clean(path), string(filepath.Separator)))
}
