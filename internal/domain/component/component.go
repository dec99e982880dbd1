package component

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

const (
	// ToolName is the base name of the compiled tool binary.
	ToolName = "rua_cli"

	// PlatformToolsName is the directory holding adb and fastboot.
	PlatformToolsName = "platform-tools"
)

var (
	// ErrInvalidTable is returned when a component table breaks its invariants.
	ErrInvalidTable = errors.New("invalid component table")
)

// Spec is a single row of the release layout.
type Spec struct {
	// Name is the entry created inside the staging directory.
	Name string
	// Source is the primary location, relative to the working directory unless absolute.
	Source string
	// Fallbacks are tried in order when Source does not exist.
	// Exhausting them is fatal even for an entry that is not Required.
	Fallbacks []string
	// Required marks the tool binary. Exactly one entry carries it.
	Required bool
}

// Mandatory reports whether the absence of the component aborts packaging.
func (s Spec) Mandatory() bool {
	return s.Required || len(s.Fallbacks) > 0
}

// Candidates returns the source followed by its fallbacks.
func (s Spec) Candidates() []string {
	return append([]string{s.Source}, s.Fallbacks...)
}

// Defaults returns the release layout with the tool binary taken from artifact.
func Defaults(artifact string) []Spec {
	return []Spec{
		{Name: filepath.Base(artifact), Source: artifact, Required: true},
		{
			Name:      PlatformToolsName,
			Source:    PlatformToolsName,
			Fallbacks: []string{filepath.Join("..", PlatformToolsName)},
		},
		{Name: "scrcpy", Source: "scrcpy"},
		{Name: "drivers", Source: "drivers"},
		{Name: "Magisk", Source: "Magisk"},
		{Name: "KSUINIT", Source: "KSUINIT"},
		{Name: "LKM", Source: "LKM"},
		{Name: "avbkey", Source: "avbkey"},
	}
}

// DefaultArtifact returns the cargo release output path of the tool for the current platform.
func DefaultArtifact() string {
	return filepath.Join("target", "release", ExecutableName(ToolName))
}

// ExecutableName appends ".exe" on Windows.
func ExecutableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}

	return base
}

// Validate checks the table invariants: unique plain names, a source for
// every entry and exactly one required entry.
func Validate(specs []Spec) error {
	var (
		seen     = make(map[string]struct{}, len(specs))
		required int
	)

	for i, spec := range specs {
		switch {
		case spec.Name == "":
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidTable, i)
		case spec.Name != filepath.Base(spec.Name) || spec.Name == "." || spec.Name == "..":
			return fmt.Errorf("%w: name %q must be a single path element", ErrInvalidTable, spec.Name)
		case spec.Source == "":
			return fmt.Errorf("%w: %s has no source", ErrInvalidTable, spec.Name)
		}

		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidTable, spec.Name)
		}

		seen[spec.Name] = struct{}{}

		if spec.Required {
			required++
		}
	}

	if required != 1 {
		return fmt.Errorf("%w: expected exactly one required entry, got %d", ErrInvalidTable, required)
	}

	return nil
}
