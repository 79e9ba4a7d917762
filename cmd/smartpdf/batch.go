package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/config"
	"github.com/jackzampolin/smartpdf/internal/svcctx"
)

var (
	batchJobs        int
	batchOutDir      string
	batchWatchConfig bool
)

// batchItem summarizes one document of a batch.
type batchItem struct {
	Source   string `json:"source" yaml:"source"`
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
	Pages    int    `json:"pages" yaml:"pages"`
	Degraded int    `json:"degraded" yaml:"degraded"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <file.pdf>...",
	Short: "Process several PDFs concurrently",
	Long: `Process several PDFs, up to --jobs at a time. Every document shares one
recognition engine, so OCR stays serialized while rendering and text
extraction run in parallel.

Each result is written to --out-dir (default: ~/.smartpdf/output) in the
--output format; a summary of all documents is printed to stdout.

With --watch-config, edits to the config file are picked up between
documents. The recognition engine keeps the settings it started with.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := svcctx.ServicesFrom(ctx)
		logger := svc.Logger

		if batchJobs < 1 {
			return fmt.Errorf("--jobs must be >= 1")
		}
		if batchWatchConfig {
			svc.Config.OnChange(func(*config.Config) {
				logger.Info("config reloaded", "file", svc.Config.ConfigFile())
			})
			svc.Config.WatchConfig()
		}

		outDir := batchOutDir
		if outDir == "" {
			outDir = svc.Home.OutputPath()
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		format := api.GetOutputFormat()

		opts, err := runOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		rec := newLazyRecognizer(svc.Config.Get(), opts.DPI, logger)
		defer rec.Close()

		items := make(batchSummary, len(args))
		var failed atomic.Int32

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchJobs)
		for i, path := range args {
			g.Go(func() error {
				item := batchItem{Source: path}
				defer func() { items[i] = item }()

				// Snapshot per document so reloaded settings apply to the next one.
				p := newProcessor(svc.Config.Get(), logger, svc.Home.WorkPath(), rec, svc.History)
				out, err := p.process(gctx, path, opts)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failed.Add(1)
					item.Error = err.Error()
					logger.Error("document failed", "source", path, "error", err)
					return nil
				}

				item.RunID = out.RunID
				item.Pages = len(out.Pages)
				item.Degraded = out.Stats.Degraded
				if batchOutDir == "" {
					// Run IDs keep documents with the same file name apart.
					item.Output = svc.Home.RunOutputPath(out.RunID, api.Extension(format))
				} else {
					item.Output = filepath.Join(outDir, outputName(path, format))
				}
				if err := api.WriteFile(item.Output, format, out); err != nil {
					failed.Add(1)
					item.Error = err.Error()
					item.Output = ""
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := api.Output(items); err != nil {
			return err
		}
		if n := failed.Load(); n > 0 {
			return fmt.Errorf("%d of %d documents failed", n, len(args))
		}
		return nil
	},
}

// batchSummary is printed after a batch; text output gets one line per
// document.
type batchSummary []batchItem

func (s batchSummary) Text() string {
	var b strings.Builder
	for _, item := range s {
		if item.Error != "" {
			fmt.Fprintf(&b, "%s: FAILED: %s\n", item.Source, item.Error)
			continue
		}
		fmt.Fprintf(&b, "%s -> %s (%d pages, %d degraded)\n", item.Source, item.Output, item.Pages, item.Degraded)
	}
	return b.String()
}

// outputName derives the result file name from the source file name.
func outputName(source string, format api.OutputFormat) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "." + api.Extension(format)
}

func init() {
	addRunFlags(batchCmd)
	batchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", 2, "documents processed concurrently")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "directory for per-document results (default: ~/.smartpdf/output)")
	batchCmd.Flags().BoolVar(&batchWatchConfig, "watch-config", false, "reload the config file between documents when it changes")

	rootCmd.AddCommand(batchCmd)
}
