package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/tracker/history"
	"github.com/kilianp07/printfleet/pkg/export"
)

var (
	historyFormat  string
	historyPrinter string
	historyStatus  string
	historySince   time.Duration
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Export archived dispatch jobs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "csv", "output format (json, csv)")
	historyCmd.Flags().StringVar(&historyPrinter, "printer", "", "only jobs of this printer")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "only jobs with this final status")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only jobs finished within this window, e.g. 24h")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "newest n jobs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !slices.Contains(export.Formats, historyFormat) {
		return fmt.Errorf("unknown format %q", historyFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Tracker.History.Type == "" || cfg.Tracker.History.Type == "none" {
		return fmt.Errorf("no history backend configured (tracker.history.type)")
	}
	store, err := history.New(cfg.Tracker.History)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := history.Query{PrinterName: historyPrinter, Limit: historyLimit}
	if historyStatus != "" {
		st, ok := model.ParseJobStatus(historyStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", historyStatus)
		}
		q.Status = st
	}
	if historySince > 0 {
		q.Since = time.Now().Add(-historySince)
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), historyFormat, recs)
}
