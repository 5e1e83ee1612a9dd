// Package cmd provides the CLI commands for gallerysearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kariantti/NuGetGallery/internal/config"
	"github.com/kariantti/NuGetGallery/internal/logging"
	"github.com/kariantti/NuGetGallery/internal/profiling"
	"github.com/kariantti/NuGetGallery/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	debugMode   bool
	workDir     string
	profileOpts profiling.Options
)

// Per-invocation resources released in PersistentPostRunE.
var (
	loggingCleanup func()
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the gallerysearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallerysearch",
		Short: "Ranked package search over a local gallery index",
		Long: `gallerysearch queries a bleve package index and returns gallery packages
ranked by relevance, popularity, recency or name.

Matches are resolved against the SQLite package catalog, so packages removed
from the catalog since the index was built are silently skipped.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return stopProfilingAndLogging()
	}

	cmd.SetVersionTemplate("gallerysearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.gallerysearch/logs/")
	cmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "Directory holding .gallerysearch.yaml and relative data paths")

	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging installs the default logger and starts any
// requested profiles.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	} else if cfg, err := config.Load(workDir); err == nil {
		logCfg.Level = cfg.Server.LogLevel
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		profileSession, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

// stopProfilingAndLogging flushes profiles, then closes the log file.
func stopProfilingAndLogging() error {
	err := profileSession.Stop()
	profileSession = nil

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
