package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kariantti/NuGetGallery/configs"
	"github.com/kariantti/NuGetGallery/internal/config"
	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gallerysearch configuration",
		Long: `Manage gallerysearch configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/gallerysearch/config.yaml)
  3. Project config (.gallerysearch.yaml in --dir)
  4. Environment variables (GALLERYSEARCH_*)`,
		Example: `  # Write a project config with defaults
  gallerysearch config init

  # Show effective configuration
  gallerysearch config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create project configuration file",
		Long: `Write .gallerysearch.yaml with default settings into --dir.

With --force an existing file is backed up, then rewritten with its own
settings plus defaults for anything it does not set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n",
				config.GetUserConfigPath(), projectConfigPath())
			return err
		},
	}
}

func projectConfigPath() string {
	return filepath.Join(workDir, config.ProjectFileName)
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := projectConfigPath()

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Project configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Newline()
			out.Status("💡", "Use --force to upgrade with new defaults (preserves your settings)")
			return nil
		}
		return runConfigUpgrade(out, path)
	}

	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return errors.New(errors.ErrCodeConfigPermission, "cannot write project configuration", err).
			WithDetail("path", path)
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Point index.path and catalog.path at your data")
	out.Status("", "  2. Run 'gallerysearch status' to verify")
	return nil
}

// runConfigUpgrade backs up path, then rewrites it with its own settings
// over the current defaults.
func runConfigUpgrade(out *output.Writer, path string) error {
	backupPath, err := config.BackupFile(path)
	if err != nil {
		return errors.ConfigError("cannot back up existing configuration", err).
			WithDetail("path", path)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("Configuration upgraded")
	out.Statusf("📁", "Location: %s", path)
	out.Statusf("💾", "Backup: %s", backupPath)
	out.Newline()
	out.Status("💡", "Your existing settings have been preserved")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		loaded, err := config.Load(workDir)
		if err != nil {
			return err
		}
		cfg = loaded
	case "defaults":
		cfg = config.NewConfig()
	default:
		return errors.ValidationError(fmt.Sprintf("unknown config source %q", source), nil).
			WithSuggestion("Use --source merged or --source defaults")
	}

	if jsonOutput {
		return output.New(cmd.OutOrStdout()).JSON(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
