package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/rua-packager/internal/domain/component"
)

// Config holds everything a packaging run needs. Relative paths are resolved
// against WorkDir, never against the process working directory.
type Config struct {
	// WorkDir is the checkout root the components are collected from.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
	// StagingDir is the directory the release is assembled in.
	StagingDir string `yaml:"staging_dir" mapstructure:"staging_dir"`
	// Archive is the self-extracting output file.
	Archive string `yaml:"archive" mapstructure:"archive"`
	// Report enables the YAML release report written next to the archive.
	Report bool `yaml:"report" mapstructure:"report"`
	// Build describes the upstream build step.
	Build Build `yaml:"build" mapstructure:"build"`
	// Compressor describes the external archiver invocation.
	Compressor Compressor `yaml:"compressor" mapstructure:"compressor"`
}

// Build configures the upstream build step.
type Build struct {
	// Command is the argument vector, program first.
	Command []string `yaml:"command" mapstructure:"command"`
	// Artifact is the tool binary produced by Command.
	Artifact string `yaml:"artifact" mapstructure:"artifact"`
	// Skip reuses an existing artifact without building.
	Skip bool `yaml:"skip" mapstructure:"skip"`
}

// Compressor configures the 7-Zip invocation.
type Compressor struct {
	// Program is looked up on PATH unless it contains a path separator.
	Program string `yaml:"program" mapstructure:"program"`
	// Format is the archive type passed to -t.
	Format string `yaml:"format" mapstructure:"format"`
	// Method is the compression method passed to -m0.
	Method string `yaml:"method" mapstructure:"method"`
	// Level is the compression level passed to -mx, 0 to 9.
	Level int `yaml:"level" mapstructure:"level"`
	// Dictionary is the dictionary size passed to -md.
	Dictionary string `yaml:"dictionary" mapstructure:"dictionary"`
	// WordSize is the fast bytes value passed to -mfb.
	WordSize int `yaml:"word_size" mapstructure:"word_size"`
	// SolidBlock is the solid block size passed to -ms.
	SolidBlock string `yaml:"solid_block" mapstructure:"solid_block"`
	// Threads is the thread count hint passed to -mmt.
	Threads int `yaml:"threads" mapstructure:"threads"`
	// SFXModule is appended to -sfx. Empty selects the compressor default.
	SFXModule string `yaml:"sfx_module" mapstructure:"sfx_module"`
}

const (
	// EnvPrefix prefixes environment overrides, e.g. RUA_PACKAGER_ARCHIVE.
	EnvPrefix = "RUA_PACKAGER"

	// DefaultConfigFilename is used by the init-config command.
	DefaultConfigFilename = "rua-packager.yaml"

	// DefaultStagingDir is where the release is assembled.
	DefaultStagingDir = "RuaFlashTool"

	// DefaultArchive is the self-extracting output.
	DefaultArchive = "RuaFlashTool.exe"

	// DefaultFilePermissions is used for the saved config and the report.
	DefaultFilePermissions = 0o600

	// ReportSuffix is appended to the archive path to name the release report.
	ReportSuffix = ".yaml"

	maxCompressionLevel = 9
)

var (
	// ErrInvalidConfig is returned for settings the pipeline cannot run with.
	ErrInvalidConfig = errors.New("invalid configuration")
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// Default returns the release packaging policy.
func Default() *Config {
	return &Config{
		WorkDir:    ".",
		StagingDir: DefaultStagingDir,
		Archive:    DefaultArchive,
		Report:     true,
		Build: Build{
			Command:  []string{"cargo", "build", "--release"},
			Artifact: component.DefaultArtifact(),
		},
		Compressor: Compressor{
			Program:    "7z",
			Format:     "7z",
			Method:     "lzma2",
			Level:      maxCompressionLevel,
			Dictionary: "128m",
			WordSize:   64,
			SolidBlock: "16g",
			Threads:    16,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and RUA_PACKAGER_* environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and rejects unusable settings,
// including layouts where resetting the staging directory would delete the
// checkout or the archive would land inside the staging directory.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	fillDefaults(cfg)

	if !cfg.Build.Skip && len(cfg.Build.Command) == 0 {
		return fmt.Errorf("%w: build command is empty", ErrInvalidConfig)
	}

	if cfg.Compressor.Level < 0 || cfg.Compressor.Level > maxCompressionLevel {
		return fmt.Errorf("%w: compression level %d is outside 0..%d",
			ErrInvalidConfig, cfg.Compressor.Level, maxCompressionLevel)
	}

	if cfg.Compressor.WordSize <= 0 || cfg.Compressor.Threads <= 0 {
		return fmt.Errorf("%w: word size and threads must be positive", ErrInvalidConfig)
	}

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("%w: work dir: %w", ErrInvalidConfig, err)
	}

	staging, err := filepath.Abs(cfg.StagingPath())
	if err != nil {
		return fmt.Errorf("%w: staging dir: %w", ErrInvalidConfig, err)
	}

	archive, err := filepath.Abs(cfg.ArchivePath())
	if err != nil {
		return fmt.Errorf("%w: archive: %w", ErrInvalidConfig, err)
	}

	if staging == workDir || isWithin(staging, workDir) {
		return fmt.Errorf("%w: staging dir %s would remove the work dir", ErrInvalidConfig, staging)
	}

	if archive == staging || isWithin(staging, archive) {
		return fmt.Errorf("%w: archive %s is inside the staging dir", ErrInvalidConfig, archive)
	}

	return nil
}

// ValidateSources rejects a staging directory that overlaps any of the
// component sources: resetting it would delete the source, and copying the
// source would recurse into its own output. The archive must not replace a
// source either.
func (c *Config) ValidateSources(sources []string) error {
	staging, err := filepath.Abs(c.StagingPath())
	if err != nil {
		return fmt.Errorf("%w: staging dir: %w", ErrInvalidConfig, err)
	}

	archive, err := filepath.Abs(c.ArchivePath())
	if err != nil {
		return fmt.Errorf("%w: archive: %w", ErrInvalidConfig, err)
	}

	for _, source := range sources {
		resolved, err := filepath.Abs(c.Resolve(source))
		if err != nil {
			return fmt.Errorf("%w: source %s: %w", ErrInvalidConfig, source, err)
		}

		if resolved == staging || isWithin(staging, resolved) || isWithin(resolved, staging) {
			return fmt.Errorf("%w: staging dir %s overlaps component source %s",
				ErrInvalidConfig, staging, resolved)
		}

		if resolved == archive {
			return fmt.Errorf("%w: archive %s would replace component source", ErrInvalidConfig, archive)
		}
	}

	return nil
}

// Resolve returns p joined to WorkDir unless p is absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.WorkDir, p)
}

// StagingPath returns the resolved staging directory.
func (c *Config) StagingPath() string {
	return c.Resolve(c.StagingDir)
}

// ArchivePath returns the resolved archive path.
func (c *Config) ArchivePath() string {
	return c.Resolve(c.Archive)
}

// ReportPath returns the resolved release report path.
func (c *Config) ReportPath() string {
	return c.ArchivePath() + ReportSuffix
}

func fillDefaults(cfg *Config) {
	def := Default()

	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = def.StagingDir
	}

	if cfg.Archive == "" {
		cfg.Archive = def.Archive
	}

	if cfg.Build.Artifact == "" {
		cfg.Build.Artifact = def.Build.Artifact
	}

	c := &cfg.Compressor

	if c.Program == "" {
		c.Program = def.Compressor.Program
	}

	if c.Format == "" {
		c.Format = def.Compressor.Format
	}

	if c.Method == "" {
		c.Method = def.Compressor.Method
	}

	if c.Dictionary == "" {
		c.Dictionary = def.Compressor.Dictionary
	}

	if c.SolidBlock == "" {
		c.SolidBlock = def.Compressor.SolidBlock
	}
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("work_dir", def.WorkDir)
	v.SetDefault("staging_dir", def.StagingDir)
	v.SetDefault("archive", def.Archive)
	v.SetDefault("report", def.Report)
	v.SetDefault("build.command", def.Build.Command)
	v.SetDefault("build.artifact", def.Build.Artifact)
	v.SetDefault("build.skip", def.Build.Skip)
	v.SetDefault("compressor.program", def.Compressor.Program)
	v.SetDefault("compressor.format", def.Compressor.Format)
	v.SetDefault("compressor.method", def.Compressor.Method)
	v.SetDefault("compressor.level", def.Compressor.Level)
	v.SetDefault("compressor.dictionary", def.Compressor.Dictionary)
	v.SetDefault("compressor.word_size", def.Compressor.WordSize)
	v.SetDefault("compressor.solid_block", def.Compressor.SolidBlock)
	v.SetDefault("compressor.threads", def.Compressor.Threads)
	v.SetDefault("compressor.sfx_module", def.Compressor.SFXModule)
}

// isWithin reports whether child lies strictly below parent.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
