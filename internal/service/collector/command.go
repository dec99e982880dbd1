package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/rua-packager/internal/domain/component"
	"github.com/oshokin/rua-packager/internal/logger"
	"github.com/oshokin/rua-packager/internal/repository/staging"
	"github.com/oshokin/rua-packager/internal/service/common"
)

var (
	// ErrBuildFailed is returned when the upstream build exits with a non-zero status.
	ErrBuildFailed = errors.New("build failed")
	// ErrRequiredComponentMissing is returned when a mandatory component cannot be found.
	ErrRequiredComponentMissing = errors.New("required component missing")
)

// Options are inputs of a collection run.
type Options struct {
	// WorkDir anchors relative component sources and is the build directory.
	WorkDir string
	// BuildCommand is the build argument vector. Empty skips the build.
	BuildCommand []string
	// Components is the release layout in collection order.
	Components []component.Spec
}

// Result lists what ended up in the staging directory.
type Result struct {
	// Included are the staged component names in table order.
	Included []string
	// Skipped are the optional components that were absent.
	Skipped []string
}

// ProcessLister lists running processes.
type ProcessLister func() ([]ps.Process, error)

// Collector runs the build and copies components into a workspace.
type Collector struct {
	runner    common.Runner
	processes ProcessLister
	opts      Options
}

// New creates a collector. processes may be nil to skip the running-binary check.
func New(runner common.Runner, processes ProcessLister, opts Options) *Collector {
	return &Collector{
		runner:    runner,
		processes: processes,
		opts:      opts,
	}
}

// Run builds the tool, checks that every mandatory component is present and
// then copies the components into ws in table order.
func (c *Collector) Run(ctx context.Context, ws *staging.Workspace) (*Result, error) {
	ctx = logger.WithName(ctx, "collector")

	if err := component.Validate(c.opts.Components); err != nil {
		return nil, err
	}

	if err := c.build(ctx); err != nil {
		return nil, err
	}

	sources, err := c.resolveMandatory(ctx)
	if err != nil {
		return nil, err
	}

	c.warnIfToolRunning(ctx)

	result := &Result{
		Included: make([]string, 0, len(c.opts.Components)),
	}

	for _, spec := range c.opts.Components {
		source, found := sources[spec.Name]
		if !found {
			source, found = c.resolve(spec)
		}

		if !found {
			logger.WarnKV(ctx, "Optional component not found, skipping",
				"component", spec.Name, "path", c.abs(spec.Source))

			result.Skipped = append(result.Skipped, spec.Name)

			continue
		}

		logger.InfoKV(ctx, "Collecting component", "component", spec.Name, "from", source)

		if err = ws.Add(ctx, spec.Name, source); err != nil {
			return nil, err
		}

		result.Included = append(result.Included, spec.Name)
	}

	logger.InfoKV(ctx, "Collection finished",
		"included", len(result.Included), "skipped", len(result.Skipped))

	return result, nil
}

// build runs the upstream build command in the work directory.
func (c *Collector) build(ctx context.Context) error {
	if len(c.opts.BuildCommand) == 0 {
		logger.Info(ctx, "Build skipped, using the existing artifact")
		return nil
	}

	logger.InfoKV(ctx, "Building the tool", "command", strings.Join(c.opts.BuildCommand, " "))

	err := c.runner.Run(ctx, c.opts.WorkDir, c.opts.BuildCommand[0], c.opts.BuildCommand[1:]...)
	if err != nil {
		return fmt.Errorf("%w: exit status %d: %w", ErrBuildFailed, common.ExitCode(err), err)
	}

	logger.Info(ctx, "Build succeeded")

	return nil
}

// resolveMandatory locates every mandatory component before anything is copied.
func (c *Collector) resolveMandatory(ctx context.Context) (map[string]string, error) {
	sources := make(map[string]string, len(c.opts.Components))

	for _, spec := range c.opts.Components {
		if !spec.Mandatory() {
			continue
		}

		source, found := c.resolve(spec)
		if !found {
			candidates := make([]string, 0, len(spec.Fallbacks)+1)
			for _, candidate := range spec.Candidates() {
				candidates = append(candidates, c.abs(candidate))
			}

			return nil, fmt.Errorf("%w: %s (looked in %s)",
				ErrRequiredComponentMissing, spec.Name, strings.Join(candidates, ", "))
		}

		if source != c.abs(spec.Source) {
			logger.InfoKV(ctx, "Component found at fallback location", "component", spec.Name, "path", source)
		}

		sources[spec.Name] = source
	}

	return sources, nil
}

// resolve returns the first existing candidate of spec.
// Symlinks are followed, so a dangling link counts as absent.
func (c *Collector) resolve(spec component.Spec) (string, bool) {
	for _, candidate := range spec.Candidates() {
		path := c.abs(candidate)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	return "", false
}

func (c *Collector) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.opts.WorkDir, p)
}

// Components returns the release layout the collector works with.
func (c *Collector) Components() []component.Spec {
	return c.opts.Components
}
