package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

var rootCmd = &cobra.Command{
	Use:   "creatorhub",
	Short: "Execution core for creator platform automation",
	Long: `creatorhub runs tasks (direct messages, posts, pricing updates, metric
fetches) against connected creator platforms.

Available subcommands:
  serve  - Run the HTTP API and the task dispatcher
  worker - Run the background job workers
  keygen - Print a new CREATORHUB_SECRET_KEY`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// A missing .env file is fine; the environment may already be set.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
