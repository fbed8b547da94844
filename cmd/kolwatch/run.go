package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kolwatch/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Verify the setup, then monitor until interrupted",
	Long: `Verify API access, resolve handles and send a test message, then poll
for new posts until SIGINT or SIGTERM.

Exit codes:
  0 - stopped by signal
  1 - unexpected error
  2 - configuration error
  3 - verification or handle lookup failed

Example:
  kolwatch run -c config.yaml --debug-first-check`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("debug-first-check", false, "log the first search request and response in full")
	runCmd.Flags().Bool("skip-verify", false, "skip the API probe and test message (handles are still resolved)")
}

func runRun(cmd *cobra.Command, args []string) error {
	opts := appOptions(cmd)
	opts.DebugFirstCheck, _ = cmd.Flags().GetBool("debug-first-check")
	opts.SkipVerify, _ = cmd.Flags().GetBool("skip-verify")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(cmd.OutOrStdout(), "🚀 kolwatch", version)
	a, err := app.New(opts)
	if err != nil {
		return err
	}
	if err := a.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\n👋 Shutting down...")
	return nil
}
