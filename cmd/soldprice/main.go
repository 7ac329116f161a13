package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "soldprice",
		Short:         "Harvest sold marketplace listings and serve price statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the scraper and the read API until interrupted",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAll(cmd.Context(), envFile, true)
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the read API only",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAll(cmd.Context(), envFile, false)
			},
		},
		newCatalogCmd(&envFile),
		newMigrateCmd(&envFile),
	)
	return root
}
