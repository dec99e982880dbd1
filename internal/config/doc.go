// Package config defines the packaging settings and helpers to load, validate
// and save them.
//
// Settings come from built-in defaults, an optional YAML file and
// RUA_PACKAGER_* environment variables. All paths are resolved against the
// configured work directory.
package config
