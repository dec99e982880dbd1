package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/rua-packager/internal/config"
	"github.com/oshokin/rua-packager/internal/domain/component"
	"github.com/oshokin/rua-packager/internal/service/archiver"
	"github.com/oshokin/rua-packager/internal/service/packager"
)

const (
	// fakeCargo writes the tool binary where cargo would.
	fakeCargo = `#!/bin/sh
/bin/mkdir -p target/release
printf 'rua_cli' > target/release/rua_cli
`
	// fakeSevenZip records the staged entries and writes the archive (10th argument).
	// Only shell builtins are used because PATH holds nothing but the stand-ins.
	fakeSevenZip = `#!/bin/sh
for entry in "${11%/*}"/*; do
  echo "${entry##*/}"
done > "${10}.list"
printf 'sfx' > "${10}"
`
	// failingCargo exits like a failed compilation.
	failingCargo = `#!/bin/sh
exit 101
`
)

// TestPackager_DefaultLayout runs the whole pipeline with stand-in cargo and
// 7z scripts and the built-in component table.
func TestPackager_DefaultLayout(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	work := filepath.Join(root, "checkout")
	bin := filepath.Join(root, "bin")

	writeScript(t, filepath.Join(bin, "cargo"), fakeCargo)
	writeScript(t, filepath.Join(bin, "7z"), fakeSevenZip)
	t.Setenv("PATH", bin)

	// platform-tools lives next to the checkout, only reachable via the fallback.
	writeFile(t, filepath.Join(root, component.PlatformToolsName, "adb"))
	writeFile(t, filepath.Join(work, "Magisk", "Magisk-v27.apk"))
	writeFile(t, filepath.Join(work, "avbkey", "testkey_rsa4096.pem"))

	cfg := config.Default()
	cfg.WorkDir = work
	cfg.StagingDir = "release"
	cfg.Archive = "RuaFlashTool.exe"
	cfg.Build.Command = []string{filepath.Join(bin, "cargo"), "build", "--release"}
	cfg.Build.Artifact = filepath.Join("target", "release", "rua_cli")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := packager.Run(ctx, &packager.Options{Config: cfg})
	require.NoError(t, err)

	require.Equal(t, []string{"rua_cli", component.PlatformToolsName, "Magisk", "avbkey"}, result.Included)
	require.Equal(t, []string{"scrcpy", "drivers", "KSUINIT", "LKM"}, result.Skipped)

	listed, err := os.ReadFile(cfg.ArchivePath() + ".list")
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]string{"Magisk", "avbkey", component.PlatformToolsName, "rua_cli"},
		strings.Fields(string(listed)))

	_, err = os.Stat(result.ReportPath)
	require.NoError(t, err)
}

// TestPackager_BuildFailure leaves no archive and an empty staging directory.
func TestPackager_BuildFailure(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	writeScript(t, filepath.Join(bin, "cargo"), failingCargo)
	writeScript(t, filepath.Join(bin, "7z"), fakeSevenZip)
	t.Setenv("PATH", bin)

	cfg := config.Default()
	cfg.WorkDir = root
	cfg.Build.Command = []string{filepath.Join(bin, "cargo"), "build", "--release"}

	_, err := packager.Run(context.Background(), &packager.Options{Config: cfg})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exit status 101")

	entries, err := os.ReadDir(cfg.StagingPath())
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = os.Stat(cfg.ArchivePath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestPackager_NoCompressor fails when 7z is not on PATH.
func TestPackager_NoCompressor(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	writeScript(t, filepath.Join(bin, "cargo"), fakeCargo)
	writeFile(t, filepath.Join(root, component.PlatformToolsName, "adb"))
	t.Setenv("PATH", bin)

	cfg := config.Default()
	cfg.WorkDir = root
	cfg.Build.Command = []string{filepath.Join(bin, "cargo"), "build", "--release"}
	cfg.Build.Artifact = filepath.Join("target", "release", "rua_cli")

	_, err := packager.Run(context.Background(), &packager.Options{Config: cfg})
	require.ErrorIs(t, err, archiver.ErrCompressorNotFound)

	_, err = os.Stat(cfg.ArchivePath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("stand-in tools are POSIX shell scripts")
	}
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755)) //nolint:gosec // Test scripts must be executable.
}

func writeFile(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}
