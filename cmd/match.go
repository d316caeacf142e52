package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/printfleet/app"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/planner"
)

var (
	matchFile     int
	matchPrinters []int
	matchModel    string
	matchAuto     bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a library file's filaments against printers and print readiness",
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().IntVar(&matchFile, "file", 0, "library file id")
	matchCmd.Flags().IntSliceVar(&matchPrinters, "printers", nil, "printer ids (specific printer mode)")
	matchCmd.Flags().StringVar(&matchModel, "model", "", "printer model (model mode)")
	matchCmd.Flags().BoolVar(&matchAuto, "auto", false, "auto-configure each printer before evaluating")
	_ = matchCmd.MarkFlagRequired("file")
	matchCmd.MarkFlagsMutuallyExclusive("printers", "model")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	p, err := svc.Session.Open(ctx, matchFile)
	if err != nil {
		return err
	}
	if matchModel != "" {
		if err := p.SetMode(ctx, model.ModeModel); err != nil {
			return err
		}
		if err := p.SelectModel(ctx, matchModel); err != nil {
			return err
		}
	} else if err := p.SelectPrinters(matchPrinters); err != nil {
		return err
	}
	if matchAuto {
		for _, id := range p.SelectedPrinters() {
			p.AutoConfigure(ctx, id)
		}
	}
	r, err := p.Readiness(ctx)
	if err != nil {
		return err
	}
	return printReadiness(cmd.OutOrStdout(), p.Job(), r)
}

func printReadiness(out io.Writer, job model.PrintJob, r planner.Readiness) error {
	fmt.Fprintf(out, "%s (file %d), mode %s\n", job.Name, job.FileID, r.Mode)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRINTER\tSLOT\tNEED\tTRAY\tSTATUS")
	for _, pr := range r.Printers {
		for _, s := range pr.Slots {
			tray := "-"
			if s.Loaded != nil {
				tray = fmt.Sprintf("%d %s %s", s.Loaded.GlobalTrayID, s.Loaded.MaterialType, s.Loaded.Color)
			}
			status := string(s.Status)
			if s.IsManual {
				status += " (manual)"
			}
			fmt.Fprintf(tw, "%d\t%d\t%s %s\t%s\t%s\n", pr.PrinterID, s.Requirement.SlotID,
				s.Requirement.MaterialType, s.Requirement.Color, tray, status)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Problem != "" {
		fmt.Fprintf(out, "not ready: %s\n", r.Problem)
		return nil
	}
	fmt.Fprintf(out, "overall %s, can dispatch: %t\n", r.Status, r.CanDispatch)
	return nil
}
