// Package logging provides opt-in file-based logging with rotation for
// kwindex. When --debug is set on the CLI, structured logs are written to
// ~/.kwindex/logs/ for build and search diagnostics.
//
// The library packages (pkg/keywords, internal/build, internal/search) never
// require a logger: they accept a *slog.Logger and fall back to a discard
// logger via OrDiscard, so embedding callers are not forced into this
// package's file-rotation policy.
package logging
