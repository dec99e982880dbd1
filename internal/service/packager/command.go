package packager

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/rua-packager/internal/config"
	"github.com/oshokin/rua-packager/internal/domain/component"
	"github.com/oshokin/rua-packager/internal/logger"
	"github.com/oshokin/rua-packager/internal/repository/staging"
	"github.com/oshokin/rua-packager/internal/service/archiver"
	"github.com/oshokin/rua-packager/internal/service/collector"
	"github.com/oshokin/rua-packager/internal/service/common"
)

// Options contains inputs for the packager entry point.
// Only Config is mandatory; the rest default to the real environment.
type Options struct {
	// Config is the packaging configuration.
	Config *config.Config
	// Components overrides the release layout derived from Config.
	Components []component.Spec
	// Runner runs the build and the compressor.
	Runner common.Runner
	// LookPath resolves the compressor program.
	LookPath common.LookPathFunc
	// Processes lists running processes for the locked-binary warning.
	Processes collector.ProcessLister
}

// Result describes a finished run.
type Result struct {
	// ArchivePath is the produced self-extracting archive.
	ArchivePath string
	// ReportPath is empty when the report is disabled.
	ReportPath string
	// Included are the staged components.
	Included []string
	// Skipped are the optional components that were absent.
	Skipped []string
}

// packager holds the collaborators of a single run.
// It is unexported; callers use Run.
type packager struct {
	cfg       *config.Config
	workspace *staging.Workspace
	collector *collector.Collector
	archiver  *archiver.Archiver
}

// Run executes the packaging pipeline.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "rua-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	result, err := pkg.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	logger.InfoKV(ctx, "Packaging completed successfully", "archive", result.ArchivePath)

	return result, nil
}

// newPackager validates the configuration and wires the pipeline steps.
func newPackager(opts *Options) (*packager, error) {
	if opts == nil || opts.Config == nil {
		return nil, fmt.Errorf("%w: configuration is not set", config.ErrInvalidConfig)
	}

	if err := config.Validate(opts.Config); err != nil {
		return nil, err
	}

	// Paths handed to external programs must be absolute.
	cfg := *opts.Config

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("%w: work dir: %w", config.ErrInvalidConfig, err)
	}

	cfg.WorkDir = workDir

	components := opts.Components
	if len(components) == 0 {
		components = component.Defaults(cfg.Build.Artifact)
	}

	sources := make([]string, 0, len(components))
	for _, spec := range components {
		sources = append(sources, spec.Candidates()...)
	}

	if err = cfg.ValidateSources(sources); err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = common.NewExecRunner()
	}

	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	processes := opts.Processes
	if processes == nil {
		processes = ps.Processes
	}

	var buildCommand []string
	if !cfg.Build.Skip {
		buildCommand = cfg.Build.Command
	}

	return &packager{
		cfg: &cfg,
		// A stale report is removed even when reporting is disabled.
		workspace: staging.NewWorkspace(cfg.StagingPath(), cfg.ArchivePath(), cfg.ReportPath()),
		collector: collector.New(runner, processes, collector.Options{
			WorkDir:      cfg.WorkDir,
			BuildCommand: buildCommand,
			Components:   components,
		}),
		archiver: archiver.New(runner, lookPath, cfg.Compressor),
	}, nil
}

// Run performs reset, collection, compression and reporting in order.
func (p *packager) Run(ctx context.Context) (*Result, error) {
	logger.Info(ctx, "Resetting workspace")

	if err := p.workspace.Reset(ctx); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Collecting components")

	collected, err := p.collector.Run(ctx, p.workspace)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Packaging archive")

	archive := p.cfg.ArchivePath()
	if err = p.archiver.Run(ctx, p.workspace.Root(), archive); err != nil {
		return nil, err
	}

	result := &Result{
		ArchivePath: archive,
		Included:    collected.Included,
		Skipped:     collected.Skipped,
	}

	if p.cfg.Report {
		if err = p.writeReport(ctx, result); err != nil {
			return nil, err
		}

		result.ReportPath = p.cfg.ReportPath()
	}

	return result, nil
}
