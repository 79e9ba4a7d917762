package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/smartpdf/internal/api"
	"github.com/jackzampolin/smartpdf/internal/history"
	"github.com/jackzampolin/smartpdf/internal/svcctx"
)

var historyLimit int

var errHistoryDisabled = errors.New("run history is disabled (history.enabled: false)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past runs",
}

// runList renders as a table in text output.
type runList []history.Run

func (l runList) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-8s  %-6s  %5s  %8s  %s\n", "ID", "STATUS", "TYPE", "PAGES", "DEGRADED", "SOURCE")
	for _, r := range l {
		fmt.Fprintf(&b, "%-36s  %-8s  %-6s  %5d  %8d  %s\n", r.ID, r.Status, r.PDFType, r.PagesSelected, r.Degraded, r.Source)
	}
	return b.String()
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := svcctx.HistoryFrom(ctx)
		if store == nil {
			return errHistoryDisabled
		}
		runs, err := store.List(ctx, historyLimit)
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []history.Run{}
		}
		return api.Output(runList(runs))
	},
}

// runDetail is one run with its pages.
type runDetail struct {
	Run   *history.Run   `json:"run" yaml:"run"`
	Pages []history.Page `json:"pages" yaml:"pages"`
}

func (d runDetail) Text() string {
	var b strings.Builder
	r := d.Run
	fmt.Fprintf(&b, "Run:      %s\n", r.ID)
	fmt.Fprintf(&b, "Source:   %s\n", r.Source)
	fmt.Fprintf(&b, "Status:   %s\n", r.Status)
	fmt.Fprintf(&b, "Type:     %s (%d pages, %d selected)\n", r.PDFType, r.PageCount, r.PagesSelected)
	fmt.Fprintf(&b, "Started:  %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Updated:  %s\n", r.UpdatedAt.Format(time.RFC3339))
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", r.Error)
	}
	for _, p := range d.Pages {
		line := fmt.Sprintf("  page %-5d %-7s conf=%.2f chars=%d", p.Page, p.Method, p.Confidence, p.Chars)
		if p.Error != "" {
			line += " error=" + p.Error
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its pages (a unique ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := svcctx.HistoryFrom(ctx)
		if store == nil {
			return errHistoryDisabled
		}
		run, pages, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return api.Output(runDetail{Run: run, Pages: pages})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to list (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
