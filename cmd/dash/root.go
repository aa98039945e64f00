package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/dash/internal/app"
	"github.com/MrSnakeDoc/dash/internal/config"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "dash",
	Short: "Personal productivity dashboard",
	Long: `dash aggregates a task board, a notes workspace and a mailbox behind
one authenticated JSON API. Without a subcommand it runs the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	a, err := app.New(cfg, logger.New(cfg.LogLevel, cfg.PrettyLog))
	if err != nil {
		return err
	}
	return a.Run()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(versionCmd)
}
