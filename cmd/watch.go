package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/printfleet/app"
	"github.com/kilianp07/printfleet/core/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the dispatch tracker and print its notifications",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	sub := svc.Bus.Subscribe()
	defer svc.Bus.Unsubscribe(sub)
	go func() {
		for n := range sub {
			fmt.Fprintln(cmd.OutOrStdout(), formatNotification(n))
		}
	}()
	return svc.Run(ctx)
}

func formatNotification(n notify.Notification) string {
	ts := n.Time.Format("15:04:05")
	if n.Batch != nil {
		b := n.Batch
		return fmt.Sprintf("%s %-8s %d/%d done, %d processing, %d queued, %d failed",
			ts, n.Kind, b.Completed, b.Total, b.Processing, b.Dispatched, b.Failed)
	}
	return fmt.Sprintf("%s %-8s %s", ts, n.Kind, n.Message)
}
