package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/oshokin/rua-packager/internal/logger"
)

// DefaultDirMode is used for the staging directory and copied directories
// whose source mode cannot be read.
const DefaultDirMode os.FileMode = 0o755

// ErrUnavailable is returned when the staging directory cannot be prepared.
var ErrUnavailable = errors.New("staging directory unavailable")

// Workspace is the staging directory of a single run together with the
// output files that must not survive from a previous run.
type Workspace struct {
	// root is the staging directory.
	root string
	// outputs are files removed on reset: the archive and its companions.
	outputs []string
}

// NewWorkspace creates a workspace for the staging directory root.
// outputs lists files produced from it that are deleted by Reset.
func NewWorkspace(root string, outputs ...string) *Workspace {
	cleaned := make([]string, 0, len(outputs))
	for _, output := range outputs {
		cleaned = append(cleaned, filepath.Clean(output))
	}

	return &Workspace{
		root:    filepath.Clean(root),
		outputs: cleaned,
	}
}

// Root returns the staging directory.
func (w *Workspace) Root() string {
	return w.root
}

// Reset removes the staging directory and the outputs of a previous run,
// then recreates the staging directory empty. Absent paths are not an error.
func (w *Workspace) Reset(ctx context.Context) error {
	logger.InfoKV(ctx, "Removing previous staging directory", "path", w.root)

	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrUnavailable, w.root, err)
	}

	for _, output := range w.outputs {
		err := os.Remove(output)

		switch {
		case err == nil:
			logger.InfoKV(ctx, "Removed stale output", "path", output)
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("%w: remove %s: %w", ErrUnavailable, output, err)
		}
	}

	if err := os.MkdirAll(w.root, DefaultDirMode); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrUnavailable, w.root, err)
	}

	logger.InfoKV(ctx, "Staging directory ready", "path", w.root)

	return nil
}

// Add copies source into the staging directory under name.
// Directories are copied recursively with their structure preserved.
func (w *Workspace) Add(ctx context.Context, name, source string) error {
	target := filepath.Join(w.root, name)

	logger.DebugKV(ctx, "Copying component", "from", source, "to", target)

	if err := CopyTree(source, target); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}

	return nil
}

// Entries returns the sorted names of the top-level staging entries.
func (w *Workspace) Entries() ([]string, error) {
	dirEntries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("read staging directory: %w", err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		names = append(names, entry.Name())
	}

	slices.Sort(names)

	return names, nil
}
