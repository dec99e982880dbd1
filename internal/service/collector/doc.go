// Package collector builds the tool and gathers the release components into
// the staging directory.
//
// The tool binary and platform-tools must be present; every other component
// is optional and skipped with a warning when its directory is missing.
package collector
