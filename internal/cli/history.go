package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"promosweep/internal/model"
	"promosweep/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show what previous runs did to each sender",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := store.NewSQLiteStore(cfg.JournalDB)
	if err != nil {
		return err
	}
	defer db.Close()

	outcomes, err := db.RecentOutcomes(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	printHistory(cmd.OutOrStdout(), outcomes)
	return nil
}

func printHistory(w io.Writer, outcomes []model.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-20s  %-12s  %-9s  %7s  %s", "WHEN", "ACTION", "STATUS", "DELETED", "SENDER")))
	for _, o := range outcomes {
		when := "-"
		if !o.ProcessedAt.IsZero() {
			when = o.ProcessedAt.Local().Format("2006-01-02 15:04:05")
		}
		status := fmt.Sprintf("%-9s", o.Status)
		if o.Status == model.StatusFailed {
			status = failureStyle.Render(status)
		} else {
			status = successStyle.Render(status)
		}
		line := fmt.Sprintf("%-20s  %-12s  %s  %7d  %s", when, o.Action, status, o.Deleted, o.Email)
		switch {
		case o.Err != "":
			line += "  " + mutedStyle.Render(o.Err)
		case o.Unsubscribed:
			line += "  " + mutedStyle.Render("(unsubscribed)")
		}
		fmt.Fprintln(w, line)
	}
}
