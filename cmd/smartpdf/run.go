package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/pipeline"
	"github.com/jackzampolin/smartpdf/internal/postprocess"
	"github.com/jackzampolin/smartpdf/internal/svcctx"
)

var (
	runPages        string
	runDPI          int
	runWindow       int
	runNoPreprocess bool
	runIgnoreTop    float64
	runIgnoreBottom float64
	runIgnoreLeft   float64
	runIgnoreRight  float64
	runOut          string
	runReformat     bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.pdf>",
	Short: "Extract text from a PDF",
	Long: `Classify a PDF, extract its text layer where there is one, and run
OCR on scanned pages.

Examples:
  smartpdf run book.pdf                          # All pages, JSON to stdout
  smartpdf run book.pdf --pages 1,3,5-7 -o text  # Selected pages as plain text
  smartpdf run scan.pdf --ignore-top 8 --ignore-bottom 6
  smartpdf run scan.pdf --reformat --out scan.yaml -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := svcctx.ServicesFrom(ctx)
		cfg := svc.Config.Get()

		opts, err := runOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		rec := newLazyRecognizer(cfg, opts.DPI, svc.Logger)
		defer rec.Close()

		p := newProcessor(cfg, svc.Logger, svc.Home.WorkPath(), rec, svc.History)
		out, err := p.process(ctx, args[0], opts)
		if err != nil {
			return err
		}

		if runOut != "" {
			if err := api.WriteFile(runOut, api.GetOutputFormat(), out); err != nil {
				return err
			}
			svc.Logger.Info("output written", "path", runOut, "run_id", out.RunID)
			return nil
		}
		return api.Output(out)
	},
}

// runOptionsFromFlags reads the run flags. Margins are overridden only
// when at least one --ignore flag was given.
func runOptionsFromFlags(cmd *cobra.Command) (runOptions, error) {
	pages, err := pipeline.ParsePageSpec(runPages)
	if err != nil {
		return runOptions{}, err
	}
	opts := runOptions{
		Pages:        pages,
		DPI:          runDPI,
		Window:       runWindow,
		NoPreprocess: runNoPreprocess,
		Reformat:     runReformat,
	}
	if runWindow < 0 {
		return runOptions{}, fmt.Errorf("--window must not be negative")
	}

	f := cmd.Flags()
	if f.Changed("ignore-top") || f.Changed("ignore-bottom") || f.Changed("ignore-left") || f.Changed("ignore-right") {
		m := postprocess.Margins{Top: runIgnoreTop, Bottom: runIgnoreBottom, Left: runIgnoreLeft, Right: runIgnoreRight}
		if err := m.Validate(); err != nil {
			return runOptions{}, err
		}
		opts.Margins = &m
	}
	return opts, nil
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&runPages, "pages", "", "pages to process, 1-based (e.g. 1,3,5-7; default: all)")
	f.IntVar(&runDPI, "dpi", 0, "render resolution, clamped to [render.min_dpi, render.max_dpi] (default: config render.dpi)")
	f.IntVar(&runWindow, "window", 0, "pages rendered ahead of recognition (default: config pipeline.prefetch_window)")
	f.BoolVar(&runNoPreprocess, "no-preprocess", false, "skip denoise, deskew and binarize")
	f.Float64Var(&runIgnoreTop, "ignore-top", 0, "ignore text in the top N percent of each scanned page")
	f.Float64Var(&runIgnoreBottom, "ignore-bottom", 0, "ignore text in the bottom N percent of each scanned page")
	f.Float64Var(&runIgnoreLeft, "ignore-left", 0, "ignore text in the left N percent of each scanned page")
	f.Float64Var(&runIgnoreRight, "ignore-right", 0, "ignore text in the right N percent of each scanned page")
	f.BoolVar(&runReformat, "reformat", false, "rewrite the extracted text with the configured chat model")
}

func init() {
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&runOut, "out", "", "write output to this file instead of stdout")

	rootCmd.AddCommand(runCmd)
}
