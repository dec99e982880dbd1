// Package staging owns the on-disk side of a packaging run: resetting the
// staging directory and stale outputs, and copying components into it.
package staging
