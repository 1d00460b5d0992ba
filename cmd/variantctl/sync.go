package main

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/danmuck/variantctl/internal/buildhost"
	"github.com/danmuck/variantctl/internal/config"
	"github.com/danmuck/variantctl/internal/hook"
	"github.com/danmuck/variantctl/internal/logging"
	"github.com/danmuck/variantctl/internal/mirror"
	"github.com/danmuck/variantctl/internal/observability"
	"github.com/danmuck/variantctl/internal/variant"
)

type syncOptions struct {
	configPath  string
	projectDir  string
	packagesDir string
	targets     []string
	dryRun      bool
	force       bool
	metricsFile string
}

func newRootCommand() *cobra.Command {
	root := newSyncCommand("variantctl")
	root.Short = "Mirror the MARLIN_F4x7Vx board variant into the STM32 framework package"
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.AddCommand(newSyncCommand("sync"), newConfigCommand())
	return root
}

func newSyncCommand(use string) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   use,
		Short: "Copy new or updated variant files into the framework package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (default <project>/"+config.DefaultFileName+" when present)")
	f.StringVar(&opts.projectDir, "project-dir", "", "project root (default $"+buildhost.EnvProjectDir+")")
	f.StringVar(&opts.packagesDir, "packages-dir", "", "platformio packages dir (default $"+buildhost.EnvProjectPackagesDir+")")
	f.StringArrayVar(&opts.targets, "target", nil, "build target passed by the host; repeatable")
	f.BoolVar(&opts.dryRun, "dry-run", false, "report what would be copied without writing")
	f.BoolVar(&opts.force, "force", false, "run even for IDE integration dumps")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write a prometheus textfile after syncing")
	return cmd
}

func runSync(cmd *cobra.Command, opts *syncOptions) error {
	env := buildhost.EnvFacts()

	settings, err := loadSettings(opts, env)
	if err != nil {
		return err
	}
	logging.ConfigureRuntime(settings.LogLevel)
	logger := logging.Logger()

	facts := env.
		Overlay(buildhost.Facts{ProjectDir: settings.ProjectDir, PackagesDir: settings.PackagesDir}).
		Overlay(buildhost.Facts{
			ProjectDir:  opts.projectDir,
			PackagesDir: opts.packagesDir,
			Targets:     opts.targets,
			Force:       opts.force,
		})
	dryRun := settings.DryRun || opts.dryRun
	metricsFile := settings.MetricsFile
	if strings.TrimSpace(opts.metricsFile) != "" {
		metricsFile = opts.metricsFile
	}

	layout := variant.DefaultLayout()
	fsys := afero.NewOsFs()
	step := hook.Step{
		Host:   buildhost.New(facts, layout, fsys, logger),
		Mirror: mirror.New(fsys, mirror.Options{DryRun: dryRun, Logger: logger}),
		Out:    cmd.OutOrStdout(),
		Log:    logger,
	}

	res, runErr := step.Run()
	if res.Skipped || metricsFile == "" {
		return runErr
	}

	metrics := observability.NewMirrorMetrics()
	metrics.RecordMirror(layout.Name,
		len(res.Report.Copied), len(res.Report.Skipped), res.Report.BytesCopied,
		res.Duration, runErr == nil, time.Now())
	if err := metrics.WriteTextfile(metricsFile); err != nil {
		if runErr != nil {
			return runErr
		}
		logger.Warn().Err(err).Str("path", metricsFile).Msg("metrics textfile not written")
	}
	return runErr
}

// loadSettings reads --config, or variantctl.toml in the project dir if one exists.
func loadSettings(opts *syncOptions, env buildhost.Facts) (config.Settings, error) {
	if opts.configPath != "" {
		return config.Load(opts.configPath)
	}
	projectDir := opts.projectDir
	if projectDir == "" {
		projectDir = env.ProjectDir
	}
	if projectDir == "" {
		return config.Default(), nil
	}
	return config.LoadOptional(filepath.Join(projectDir, config.DefaultFileName))
}
