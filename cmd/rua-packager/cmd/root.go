package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oshokin/rua-packager/internal/config"
	"github.com/oshokin/rua-packager/internal/logger"
	"github.com/oshokin/rua-packager/internal/service/packager"
	"github.com/oshokin/rua-packager/internal/version"
)

// flags holds command-line overrides. Empty values keep the configured ones.
type flags struct {
	configPath string
	workDir    string
	stagingDir string
	archive    string
	logLevel   string
	skipBuild  bool
	noReport   bool
}

// newRootCmd builds the packager command tree.
func newRootCmd() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "rua-packager",
		Short:         "Build RuaFlashTool and pack the release into a self-extracting archive",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}

			_, err = packager.Run(ctx, &packager.Options{Config: cfg})

			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		level, ok := logger.ParseLogLevel(f.logLevel)
		if !ok {
			return fmt.Errorf("%w: unknown log level %q", config.ErrInvalidConfig, f.logLevel)
		}

		logger.SetLevel(level)

		return nil
	}

	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVarP(&f.workDir, "workdir", "w", "", "checkout root the components are collected from")
	rootCmd.Flags().StringVarP(&f.stagingDir, "staging", "s", "", "staging directory")
	rootCmd.Flags().StringVarP(&f.archive, "archive", "o", "", "self-extracting archive to produce")
	rootCmd.Flags().BoolVar(&f.skipBuild, "skip-build", false, "reuse the existing build artifact")
	rootCmd.Flags().BoolVar(&f.noReport, "no-report", false, "do not write the release report")

	rootCmd.AddCommand(newInitConfigCmd())
	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// newInitConfigCmd writes the default configuration for editing.
func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) == 1 {
				path = args[0]
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Default configuration written", "path", path)

			return nil
		},
	}
}

// loadConfig reads the configuration and applies flags set on the command line.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed("workdir") {
		cfg.WorkDir = f.workDir
	}

	if changed("staging") {
		cfg.StagingDir = f.stagingDir
	}

	if changed("archive") {
		cfg.Archive = f.archive
	}

	if changed("skip-build") {
		cfg.Build.Skip = f.skipBuild
	}

	if changed("no-report") {
		cfg.Report = !f.noReport
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Execute runs the rua-packager CLI and exits with status 1 on any fatal error.
func Execute() {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	ctx := context.Background()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.ErrorKV(ctx, "Packaging aborted", "error", err)
		os.Exit(1)
	}
}
