package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/config"
	"github.com/jackzampolin/smartpdf/internal/history"
	"github.com/jackzampolin/smartpdf/internal/home"
	"github.com/jackzampolin/smartpdf/internal/svcctx"
	"github.com/jackzampolin/smartpdf/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "smartpdf",
	Short: "Extract text from PDFs, running OCR only on pages that need it",
	Long: `smartpdf turns PDF documents into text.

Pages that carry a text layer are extracted directly. Scanned pages are
rendered, cleaned up and sent through a recognition engine, then rebuilt
into lines and paragraphs with repeated headers and footers removed.

Rendering of upcoming pages overlaps with recognition of the current one,
while results are always emitted in page order.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := api.SetOutputFormat(outputFormat); err != nil {
			return err
		}
		svc, err := buildServices()
		if err != nil {
			return err
		}
		cmd.SetContext(svcctx.WithServices(cmd.Context(), svc))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store := svcctx.HistoryFrom(cmd.Context()); store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.smartpdf/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "smartpdf home directory (default: ~/.smartpdf)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "json", "output format: json, yaml or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}

// buildServices wires the logger, home directory, config and history
// store shared by every command.
func buildServices() (*svcctx.Services, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, err
	}
	if used := mgr.ConfigFile(); used != "" {
		logger.Debug("config loaded", "file", used)
	}

	svc := &svcctx.Services{Logger: logger, Config: mgr, Home: h}

	hist := mgr.Get().History
	if hist.Enabled {
		path := hist.Path
		if path == "" {
			path = h.HistoryPath()
		}
		store, err := history.Open(path, history.WithLogger(logger))
		if err != nil {
			// History is a convenience; processing still works without it.
			logger.Warn("run history disabled", "path", path, "error", err)
		} else {
			svc.History = store
		}
	}
	return svc, nil
}
