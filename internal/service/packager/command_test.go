package packager

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/rua-packager/internal/config"
	"github.com/oshokin/rua-packager/internal/domain/component"
	"github.com/oshokin/rua-packager/internal/domain/release"
	"github.com/oshokin/rua-packager/internal/repository/staging"
	"github.com/oshokin/rua-packager/internal/service/archiver"
	"github.com/oshokin/rua-packager/internal/service/collector"
)

var errExit = errors.New("exit status 1")

// pipelineRunner plays both cargo and 7z.
type pipelineRunner struct {
	t          *testing.T
	artifact   string
	buildErr   error
	compressed []string
}

func (r *pipelineRunner) Run(_ context.Context, _, program string, args ...string) error {
	r.t.Helper()

	if program == "cargo" {
		if r.buildErr != nil {
			return r.buildErr
		}

		require.NoError(r.t, os.MkdirAll(filepath.Dir(r.artifact), 0o755))

		return os.WriteFile(r.artifact, []byte("rua_cli binary"), 0o755)
	}

	archive := args[len(args)-2]
	stagingDir := filepath.Dir(args[len(args)-1])

	entries, err := os.ReadDir(stagingDir)
	require.NoError(r.t, err)

	for _, entry := range entries {
		r.compressed = append(r.compressed, entry.Name())
	}

	return os.WriteFile(archive, []byte("MZ self-extracting"), 0o600)
}

func noProcesses() ([]ps.Process, error) {
	return nil, nil
}

func lookPath(program string) (string, error) {
	return filepath.Join("/opt/7zip", program), nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.StagingDir = "out"
	cfg.Archive = "pkg.exe"
	cfg.Build.Artifact = filepath.Join("target", "release", "tool")

	return cfg
}

func testComponents(cfg *config.Config) []component.Spec {
	return []component.Spec{
		{Name: "tool", Source: cfg.Build.Artifact, Required: true},
		{Name: "extra1", Source: "extra1"},
		{Name: "extra2", Source: "extra2"},
	}
}

func newOptions(t *testing.T, cfg *config.Config) (*Options, *pipelineRunner) {
	t.Helper()

	runner := &pipelineRunner{t: t, artifact: cfg.Resolve(cfg.Build.Artifact)}

	return &Options{
		Config:     cfg,
		Components: testComponents(cfg),
		Runner:     runner,
		LookPath:   lookPath,
		Processes:  noProcesses,
	}, runner
}

// TestRun_Success collects tool and extra1, skips extra2 and writes the report.
func TestRun_Success(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeFile(t, cfg.Resolve(filepath.Join("extra1", "readme.txt")))

	opts, runner := newOptions(t, cfg)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	require.Equal(t, cfg.ArchivePath(), result.ArchivePath)
	require.Equal(t, []string{"tool", "extra1"}, result.Included)
	require.Equal(t, []string{"extra2"}, result.Skipped)
	require.Equal(t, []string{"extra1", "tool"}, runner.compressed)

	_, err = os.Stat(cfg.Resolve(filepath.Join("out", "extra2")))
	require.ErrorIs(t, err, os.ErrNotExist)

	contents, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)

	var report release.Report
	require.NoError(t, yaml.Unmarshal(contents, &report))
	require.Equal(t, "pkg.exe", report.Archive.Path)
	require.Equal(t, "tool", report.Tool.Path)
	require.Equal(t, result.Included, report.Included)
	require.Equal(t, result.Skipped, report.Skipped)

	sum, err := FileChecksum(cfg.ArchivePath())
	require.NoError(t, err)
	require.Equal(t, sum, report.Archive.Checksum)
	require.Contains(t, report.Compression, "-mx=9")
}

// TestRun_BuildFailure produces neither staged components nor an archive.
func TestRun_BuildFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeFile(t, cfg.Resolve(filepath.Join("extra1", "readme.txt")))

	opts, runner := newOptions(t, cfg)
	runner.buildErr = errExit

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, collector.ErrBuildFailed)

	entries, err := os.ReadDir(cfg.StagingPath())
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = os.Stat(cfg.ArchivePath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_CompressorMissing stops before any archive is created.
func TestRun_CompressorMissing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	opts, runner := newOptions(t, cfg)
	opts.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, archiver.ErrCompressorNotFound)
	require.Empty(t, runner.compressed)

	_, err = os.Stat(cfg.ArchivePath())
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(cfg.ReportPath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_ResetsStaleOutputs removes leftovers of a previous run.
func TestRun_ResetsStaleOutputs(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Report = false
	writeFile(t, cfg.Resolve(filepath.Join("out", "old.txt")))
	writeFile(t, cfg.ArchivePath())

	opts, runner := newOptions(t, cfg)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Empty(t, result.ReportPath)
	require.Equal(t, []string{"tool"}, runner.compressed)

	data, err := os.ReadFile(cfg.ArchivePath())
	require.NoError(t, err)
	require.Equal(t, "MZ self-extracting", string(data))
}

// TestRun_SkipBuild uses an artifact that is already present.
func TestRun_SkipBuild(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Build.Skip = true
	writeFile(t, cfg.Resolve(cfg.Build.Artifact))

	opts, _ := newOptions(t, cfg)
	opts.Runner = &pipelineRunner{t: t, buildErr: errExit}

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, []string{"tool"}, result.Included)
}

// TestRun_InvalidConfig rejects a nil configuration.
func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

// TestRun_StagingUnavailable fails when the staging dir cannot be created.
func TestRun_StagingUnavailable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeFile(t, cfg.Resolve("blocker"))
	cfg.StagingDir = filepath.Join("blocker", "out")

	opts, runner := newOptions(t, cfg)

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, staging.ErrUnavailable)
	require.Empty(t, runner.compressed)
}

// TestRun_StagingOverlapsSource refuses to run before touching the source.
func TestRun_StagingOverlapsSource(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	precious := cfg.Resolve(filepath.Join("extra1", "precious.txt"))
	writeFile(t, precious)
	cfg.StagingDir = "extra1"

	opts, runner := newOptions(t, cfg)

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	require.Empty(t, runner.compressed)

	_, err = os.Stat(precious)
	require.NoError(t, err)
}

// TestRun_RemovesStaleReportWhenDisabled keeps a previous report from
// describing a new archive.
func TestRun_RemovesStaleReportWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Report = false
	writeFile(t, cfg.ReportPath())

	opts, _ := newOptions(t, cfg)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Empty(t, result.ReportPath)

	_, err = os.Stat(cfg.ReportPath())
	require.ErrorIs(t, err, os.ErrNotExist)
}
