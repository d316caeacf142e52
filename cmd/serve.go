package cmd

import "github.com/spf13/cobra"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the dispatch tracker and the event source",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
