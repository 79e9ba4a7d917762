package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/pdfdoc"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Print the embedded text layer of a PDF",
	Long: `Extract the text layer of every page without rendering or OCR.
Pages are joined by a blank line. Scanned pages contribute nothing; use
"smartpdf classify" to see which pages need recognition.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := extractDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.Output(out)
	},
}

// extractOutput is the whole-document text of one PDF.
type extractOutput struct {
	Source    string `json:"source" yaml:"source"`
	PageCount int    `json:"page_count" yaml:"page_count"`
	Content   string `json:"text" yaml:"text"`
}

func (o *extractOutput) Text() string { return o.Content }

func extractDocument(ctx context.Context, path string) (*extractOutput, error) {
	doc, err := pdfdoc.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	text, err := doc.ExtractAll(ctx)
	if err != nil {
		return nil, err
	}
	return &extractOutput{Source: path, PageCount: doc.PageCount(), Content: text}, nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
