package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/config"
	"github.com/jackzampolin/smartpdf/internal/svcctx"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the smartpdf configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Long: `Write the default configuration to path (default: ~/.smartpdf/config.yaml).
An existing file is kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir := svcctx.HomeFrom(ctx)

		path := dir.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		} else if err := dir.EnsureExists(); err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		svcctx.LoggerFrom(ctx).Info("config written", "path", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and SMARTPDF_*
environment overrides are merged. ${ENV_VAR} references are shown
unexpanded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr := svcctx.ConfigFrom(ctx)
		if f := mgr.ConfigFile(); f != "" {
			svcctx.LoggerFrom(ctx).Debug("showing config", "file", f)
		}
		format := api.GetOutputFormat()
		if format == api.OutputFormatText {
			format = api.OutputFormatYAML
		}
		return api.OutputAs(format, mgr.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
