// Package notifications pushes lifecycle events to an ntfy topic when
// one is configured, and silently drops them otherwise.
package notifications
