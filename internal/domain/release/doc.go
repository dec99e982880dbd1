// Package release contains the types describing a finished package: who built
// it, what went into it and the checksums needed to verify the download.
package release
