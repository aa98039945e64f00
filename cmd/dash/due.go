package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/dash/internal/config"
	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

var (
	dueDays int
	dueJSON bool
)

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List task-board cards due soon",
	Long: `Lists cards due between now and now+days across every board the token
can see. The token is read from DASH_TRELLO_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(os.Getenv("DASH_TRELLO_TOKEN"))
		if token == "" {
			return errors.New("DASH_TRELLO_TOKEN is not set")
		}
		if dueDays < 0 {
			return fmt.Errorf("--days must not be negative, got %d", dueDays)
		}

		cfg := config.Load()
		opts := connector.OptionsFromConfig(cfg, logger.New(cfg.LogLevel, cfg.PrettyLog))
		c, err := connector.New(string(domain.ServiceTaskBoard), token, opts)
		if err != nil {
			return err
		}
		tb, ok := connector.AsTaskBoard(c)
		if !ok {
			return fmt.Errorf("connector %s is not a task board", c.ServiceType())
		}

		cards := tb.ListCardsDueWithin(cmd.Context(), dueDays)
		if dueJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cards)
		}
		printCards(cmd.OutOrStdout(), cards, dueDays)
		return nil
	},
}

func printCards(w io.Writer, cards []domain.TaskCard, days int) {
	if len(cards) == 0 {
		fmt.Fprintf(w, "No cards due in the next %d days.\n", days)
		return
	}

	fmt.Fprintf(w, "%-20s %-15s %s\n", "DUE", "STATUS", "TITLE")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, c := range cards {
		due := "-"
		if c.Due != nil {
			due = c.Due.Local().Format("2006-01-02 15:04")
		}
		status := c.Status
		if len(status) > 13 {
			status = status[:10] + "..."
		}
		fmt.Fprintf(w, "%-20s %-15s %s\n", due, status, c.Title)
	}
}

func init() {
	dueCmd.Flags().IntVar(&dueDays, "days", 7, "look-ahead window in days")
	dueCmd.Flags().BoolVar(&dueJSON, "json", false, "print cards as JSON")
}
