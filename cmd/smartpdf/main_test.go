package main

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/config"
	"github.com/jackzampolin/smartpdf/internal/pipeline"
	"github.com/jackzampolin/smartpdf/internal/reformat"
)

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "classify", "extract", "batch", "config", "history", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRunOptionsFromFlags(t *testing.T) {
	t.Cleanup(func() {
		runPages, runIgnoreTop, runIgnoreBottom, runWindow = "", 0, 0, 0
		for _, name := range []string{"pages", "ignore-top", "ignore-bottom", "window"} {
			runCmd.Flags().Lookup(name).Changed = false
		}
	})

	opts, err := runOptionsFromFlags(runCmd)
	require.NoError(t, err)
	assert.Nil(t, opts.Pages)
	assert.Nil(t, opts.Margins, "margins untouched without --ignore flags")

	require.NoError(t, runCmd.Flags().Set("pages", "5-6,2"))
	require.NoError(t, runCmd.Flags().Set("ignore-top", "10"))
	require.NoError(t, runCmd.Flags().Set("window", "4"))
	opts, err = runOptionsFromFlags(runCmd)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 2}, opts.Pages)
	assert.Equal(t, 4, opts.Window)
	require.NotNil(t, opts.Margins)
	assert.Equal(t, 10.0, opts.Margins.Top)

	require.NoError(t, runCmd.Flags().Set("ignore-bottom", "95"))
	_, err = runOptionsFromFlags(runCmd)
	assert.Error(t, err, "top+bottom must stay below 100")

	require.NoError(t, runCmd.Flags().Set("pages", "3-1"))
	_, err = runOptionsFromFlags(runCmd)
	assert.ErrorIs(t, err, pipeline.ErrInvalidPageSpec)
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = parseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = parseLogLevel("loud")
	assert.Error(t, err)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "report.json", outputName("/tmp/in/report.pdf", api.OutputFormatJSON))
	assert.Equal(t, "scan.v2.yaml", outputName("scan.v2.PDF", api.OutputFormatYAML))
	assert.Equal(t, "notes.txt", outputName("notes", api.OutputFormatText))
}

func TestRunOutputText(t *testing.T) {
	out := &runOutput{Result: pipeline.Result{Pages: []pipeline.PageRecord{{Text: "a"}, {Text: ""}, {Text: "b"}}}}
	assert.Equal(t, "a\n\nb", out.Text())

	out.Reformat = &reformat.Outcome{Formatted: "A B"}
	assert.Equal(t, "A B", out.Text())
}

func TestBatchSummaryText(t *testing.T) {
	s := batchSummary{
		{Source: "a.pdf", Output: "out/a.json", Pages: 3, Degraded: 1},
		{Source: "b.pdf", Error: "invalid page numbers 9"},
	}
	assert.Equal(t,
		"a.pdf -> out/a.json (3 pages, 1 degraded)\nb.pdf: FAILED: invalid page numbers 9\n",
		s.Text())
}

func TestExtractDocument(t *testing.T) {
	out, err := extractDocument(context.Background(), "../../internal/pdfdoc/testdata/three_pages.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, out.PageCount)
	assert.Contains(t, out.Text(), "Hello from page one")
	assert.Contains(t, out.Text(), "Closing remarks on page three")
	assert.Less(t, strings.Index(out.Text(), "page one"), strings.Index(out.Text(), "page three"))

	_, err = extractDocument(context.Background(), "missing.pdf")
	assert.Error(t, err)
}

func TestLazyRecognizerUsesEffectiveDPI(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Render.MinDPI, cfg.Render.MaxDPI = 100, 800
	logger := slog.New(slog.DiscardHandler)

	assert.Equal(t, 300, newLazyRecognizer(cfg, 0, logger).cfg.DPI)
	assert.Equal(t, 700, newLazyRecognizer(cfg, 700, logger).cfg.DPI)
	assert.Equal(t, 800, newLazyRecognizer(cfg, 2000, logger).cfg.DPI)
	assert.Equal(t, 100, newLazyRecognizer(cfg, 50, logger).cfg.DPI)
}
