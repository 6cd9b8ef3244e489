// Package daemon coordinates the long-running Winnow process.
//
// It wires configuration, catalog storage, the scanner, the filesystem
// watcher, and the reconcile loop into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon seeds
// the initial admin account, runs the startup scan, and exposes the
// scan, reconcile, listing, and diagnostics entry points the IPC
// surface calls into.
//
// Keep orchestration logic here: the individual lifecycle steps live in
// their respective packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
