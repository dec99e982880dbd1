// Package component describes the release layout: which directories and
// binaries end up in the staging directory, where they come from, and which
// of them the package cannot do without.
package component
