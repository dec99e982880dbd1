package archiver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/oshokin/rua-packager/internal/config"
	"github.com/oshokin/rua-packager/internal/logger"
	"github.com/oshokin/rua-packager/internal/service/common"
)

var (
	// ErrCompressorNotFound is returned when the compressor is not on PATH.
	ErrCompressorNotFound = errors.New("compressor not found")
	// ErrCompressionFailed is returned when the compressor exits with a non-zero
	// status or leaves no archive behind.
	ErrCompressionFailed = errors.New("compression failed")
)

// Archiver invokes the compressor once per run.
type Archiver struct {
	runner   common.Runner
	lookPath common.LookPathFunc
	cfg      config.Compressor
}

// New creates an archiver with the given compression settings.
func New(runner common.Runner, lookPath common.LookPathFunc, cfg config.Compressor) *Archiver {
	return &Archiver{
		runner:   runner,
		lookPath: lookPath,
		cfg:      cfg,
	}
}

// Arguments returns the compressor argument vector packing the whole content
// of stagingDir into archive.
func (a *Archiver) Arguments(stagingDir, archive string) []string {
	return []string{
		"a",
		"-t" + a.cfg.Format,
		"-m0=" + a.cfg.Method,
		"-mx=" + strconv.Itoa(a.cfg.Level),
		"-md=" + a.cfg.Dictionary,
		"-mfb=" + strconv.Itoa(a.cfg.WordSize),
		"-ms=" + a.cfg.SolidBlock,
		"-mmt=" + strconv.Itoa(a.cfg.Threads),
		"-sfx" + a.cfg.SFXModule,
		archive,
		filepath.Join(stagingDir, "*"),
	}
}

// Run compresses stagingDir into archive. A partial archive left by a failed
// compressor is kept for inspection.
func (a *Archiver) Run(ctx context.Context, stagingDir, archive string) error {
	ctx = logger.WithName(ctx, "archiver")

	program, err := a.lookPath(a.cfg.Program)
	if err != nil {
		return fmt.Errorf("%w: %s is not on PATH, install 7-Zip and add it to PATH: %w",
			ErrCompressorNotFound, a.cfg.Program, err)
	}

	args := a.Arguments(stagingDir, archive)

	logger.InfoKV(ctx, "Creating self-extracting archive", "compressor", program, "archive", archive)
	logger.DebugKV(ctx, "Compressor arguments", "args", args)

	if err = a.runner.Run(ctx, filepath.Dir(archive), program, args...); err != nil {
		return fmt.Errorf("%w: exit status %d: %w", ErrCompressionFailed, common.ExitCode(err), err)
	}

	if _, err = os.Stat(archive); err != nil {
		return fmt.Errorf("%w: archive was not produced: %w", ErrCompressionFailed, err)
	}

	logger.InfoKV(ctx, "Archive created", "archive", archive)

	return nil
}
