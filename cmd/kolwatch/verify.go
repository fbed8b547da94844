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

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check API access, handles and the Telegram bot",
	Long: `Probe the search API and print the remaining request quota, resolve
every configured handle, send a test message to the channel (telegram sink)
and list the latest journal entries when storage is enabled.

Nothing is monitored. Exit code 3 means a check failed.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(appOptions(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Verify(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\n✓ Setup looks good")
	return nil
}
