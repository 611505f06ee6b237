package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"promosweep/internal/logger"
	"promosweep/internal/model"
	"promosweep/internal/sweep"
)

var (
	batchAction string
	batchDryRun bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process the top senders without prompting",
	Long: `Scan the mailbox and apply one action to the first max_senders senders,
in the order they were first seen.

Examples:
  promosweep batch --action unsubscribe
  promosweep batch --action filter --max-senders 10
  promosweep batch --action filter --dry-run`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchAction, "action", "", "Action to apply: unsubscribe or filter (required)")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "Print the selection without changing anything")
	_ = batchCmd.MarkFlagRequired("action")

	rootCmd.AddCommand(batchCmd)
}

func parseAction(s string) (model.Action, error) {
	switch a := model.Action(s); a {
	case model.ActionUnsubscribe, model.ActionFilter:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q (want %q or %q)", s, model.ActionUnsubscribe, model.ActionFilter)
}

func runBatch(cmd *cobra.Command, args []string) error {
	action, err := parseAction(batchAction)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, verbose)
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	s, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := scan(ctx, s)
	if err != nil {
		return err
	}
	selection, err := sweep.SelectTop(res.Senders, cfg.MaxSenders)
	if errors.As(err, &sweep.EmptySelectionError{}) {
		fmt.Fprintln(out, "Nothing to do: no promotional senders found.")
		return nil
	}
	if err != nil {
		return err
	}

	if batchDryRun {
		fmt.Fprintf(out, "Would %s %d senders:\n", action.Description(), len(selection))
		printSenders(out, res.Senders, selection)
		return nil
	}

	outcomes := s.runner.RunAll(ctx, selection, action, func(p sweep.RunProgress) {
		if p.Outcome == nil {
			log.Info(fmt.Sprintf("Processing %d/%d: %s", p.Index, p.Total, p.Email))
		}
	})
	failed := printSummary(out, outcomes, len(selection))

	if len(outcomes) > 0 && failed == len(outcomes) {
		return fmt.Errorf("all %d senders failed", failed)
	}
	return ctx.Err()
}

// printSummary writes one line per outcome plus totals and returns how many
// senders failed.
func printSummary(w io.Writer, outcomes []model.Outcome, selected int) int {
	var failed, unsubscribed, deleted int
	for _, o := range outcomes {
		switch {
		case o.Status == model.StatusFailed:
			failed++
			fmt.Fprintf(w, "%s %s: %s\n", failureStyle.Render("FAILED"), o.Email, o.Err)
		case o.Action == model.ActionUnsubscribe && !o.Unsubscribed:
			fmt.Fprintf(w, "%s %s: %d deleted, unsubscribe not possible\n", successStyle.Render("OK"), o.Email, o.Deleted)
		default:
			fmt.Fprintf(w, "%s %s: %d deleted\n", successStyle.Render("OK"), o.Email, o.Deleted)
		}
		if o.Unsubscribed {
			unsubscribed++
		}
		deleted += o.Deleted
	}
	fmt.Fprintf(w, "Processed %d of %d senders: %d failed, %d unsubscribed, %d messages moved to trash.\n",
		len(outcomes), selected, failed, unsubscribed, deleted)
	return failed
}
