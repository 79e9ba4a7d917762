package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/classify"
	"github.com/jackzampolin/smartpdf/internal/pdfdoc"
	"github.com/jackzampolin/smartpdf/internal/schema"
	"github.com/jackzampolin/smartpdf/internal/svcctx"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file.pdf>",
	Short: "Report which pages carry text and which need OCR",
	Long: `Classify a PDF as text, image or mixed without rendering or
recognizing anything. Documents above classify.sample_cutoff pages are
sampled at the start, middle and end.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := svcctx.ConfigFrom(ctx).Get()
		logger := svcctx.LoggerFrom(ctx)

		doc, err := pdfdoc.Open(args[0])
		if err != nil {
			return err
		}
		defer doc.Close()

		cls, err := classify.New(classify.Config{
			TextThreshold: cfg.Classify.TextThreshold,
			SampleCutoff:  cfg.Classify.SampleCutoff,
			SampleWindow:  cfg.Classify.SampleWindow,
			Logger:        logger,
		}).Classify(ctx, doc)
		if err != nil {
			return err
		}
		if err := schema.Validate(schema.Classification, cls); err != nil {
			logger.Warn("classification failed schema validation", "error", err)
		}
		return api.Output(cls)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
