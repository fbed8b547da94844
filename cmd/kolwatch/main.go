// Command kolwatch watches a set of accounts for new posts and forwards
// them to a Telegram channel or plays an alert sound.
//
// Usage:
//
//	kolwatch run -c config.yaml      # verify, then monitor until SIGINT/SIGTERM
//	kolwatch verify -c config.yaml   # check API access, handles and the bot
//	kolwatch version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kolwatch/internal/app"
)

// set via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "kolwatch",
	Short: "Forward new posts from watched accounts to Telegram",
	Long: `kolwatch polls the recent-search API for posts from a list of handles,
stays inside the request quota and forwards every new post once.

Secrets come from the environment (or a .env file):
  TWITTER_BEARER_TOKEN, TELEGRAM_BOT_TOKEN, TELEGRAM_CHANNEL_ID`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kolwatch %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to config file (yaml or json)")
	rootCmd.PersistentFlags().String("env", "", "env file with secrets (default .env if present)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
	}
	os.Exit(app.ExitCode(err))
}

func appOptions(cmd *cobra.Command) app.Options {
	cfgPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env")
	return app.Options{ConfigPath: cfgPath, EnvFile: envFile, Out: cmd.OutOrStdout()}
}
