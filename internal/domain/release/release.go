package release

import "time"

// Actor identifies who produced the package.
type Actor struct {
	// Hostname is the machine the packager ran on.
	Hostname string `yaml:"hostname"`
	// Username is the system user who ran the packager.
	Username string `yaml:"username"`
}

// File is a produced file with its base64-encoded checksum.
type File struct {
	Path     string `yaml:"path"`
	Checksum string `yaml:"checksum"`
}

// Report is written next to the archive after a successful run.
type Report struct {
	// Version of the packaged tool.
	Version string `yaml:"version"`
	// CreatedAt is when the archive was produced.
	CreatedAt time.Time `yaml:"created_at"`
	// PackagedBy is empty when the host or user could not be detected.
	PackagedBy *Actor `yaml:"packaged_by,omitempty"`
	// Archive is the self-extracting output.
	Archive File `yaml:"archive"`
	// Tool is the compiled binary as staged.
	Tool File `yaml:"tool"`
	// Included lists staged components in table order.
	Included []string `yaml:"included"`
	// Skipped lists optional components that were absent.
	Skipped []string `yaml:"skipped,omitempty"`
	// Compression is the argument vector passed to the compressor.
	Compression []string `yaml:"compression"`
}
