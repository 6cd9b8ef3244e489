// Package preflight provides storage readiness checks for the
// directories Winnow depends on.
//
// These checks run in two contexts:
//   - The daemon calls ValidateStorage before opening the catalog. A
//     root that is missing or unwritable aborts startup rather than
//     letting later moves fail halfway through.
//   - The CLI "winnow status" command uses RunAll to display each
//     directory's health plus free space.
//
// Trash and permanent siblings are created on demand; library roots
// never are, since a missing root usually means an absent mount.
package preflight
