// Package logging wraps log/slog with the handlers, attribute helpers, and
// field-name constants shared by every winnow component.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for machine consumption. Loggers are handed down from the
// process entry points; components derive their own via NewComponentLogger and
// annotate records through the Field* constants so log queries stay stable.
package logging
