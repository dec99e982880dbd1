// Package version exposes build metadata for the packager.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// The same version string is stamped into every release report.
package version
