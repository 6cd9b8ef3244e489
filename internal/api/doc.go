// Package api provides the function-based workflows behind the CLI and
// IPC surfaces: marking and unmarking items, rescue and persist
// operations, listings, stats, and user administration.
//
// Workflows take a Request struct carrying the open store plus config
// and logger, build the engines they need, and return a Result struct.
// They run directly against the catalog; the CAS status transitions
// inside the engines make that safe even while the daemon reconciles
// in the background.
package api
