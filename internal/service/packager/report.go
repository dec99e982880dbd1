package packager

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/rua-packager/internal/config"
	"github.com/oshokin/rua-packager/internal/domain/release"
	"github.com/oshokin/rua-packager/internal/logger"
	"github.com/oshokin/rua-packager/internal/service/common"
	"github.com/oshokin/rua-packager/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction is used for the checksums in the release report.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// writeReport stores the release report next to the archive.
func (p *packager) writeReport(ctx context.Context, result *Result) error {
	report := &release.Report{
		Version:     version.Short(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Included:    result.Included,
		Skipped:     result.Skipped,
		Compression: p.archiver.Arguments(p.workspace.Root(), result.ArchivePath),
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect who is packaging", "error", err)
	} else {
		report.PackagedBy = actor
	}

	archiveSum, err := FileChecksum(result.ArchivePath)
	if err != nil {
		return err
	}

	report.Archive = release.File{
		Path:     filepath.Base(result.ArchivePath),
		Checksum: archiveSum,
	}

	if toolName := p.toolName(); toolName != "" {
		toolSum, err := FileChecksum(filepath.Join(p.workspace.Root(), toolName))
		if err != nil {
			return err
		}

		report.Tool = release.File{Path: toolName, Checksum: toolSum}
	}

	contents, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	path := p.cfg.ReportPath()
	if err = os.WriteFile(path, contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.InfoKV(ctx, "Release report saved", "path", path)

	return nil
}

// toolName returns the staged name of the required component.
func (p *packager) toolName() string {
	for _, spec := range p.collector.Components() {
		if spec.Required {
			return spec.Name
		}
	}

	return ""
}

// FileChecksum returns the base64-encoded checksum of a file using DefaultChecksumFunction.
func FileChecksum(path string) (string, error) {
	if !DefaultChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DefaultChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}
