// Package main hosts the winnow CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon, direct catalog workflows for item and user
// mutations, log tailing, and configuration scaffolding. It centralizes
// configuration resolution and socket discovery so subcommands can focus
// on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags
// here. Read commands go through catalogaccess so they work whether or
// not the daemon is running; daemon control goes through daemonctl.
package main
