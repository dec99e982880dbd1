// Package common holds helpers shared by the pipeline services.
//
// It runs external programs as argument vectors and detects the system actor
// (hostname/username) stamped into the release report.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
