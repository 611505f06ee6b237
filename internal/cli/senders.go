package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"promosweep/internal/logger"
	"promosweep/internal/sweep"
)

var sendersAll bool

var sendersCmd = &cobra.Command{
	Use:   "senders",
	Short: "List promotional senders with their message counts",
	Long: `Scan the mailbox and print one line per sender, in the order they were
first seen: "name <address> (count)", or "address (count)" when the sender
has no display name.`,
	Args: cobra.NoArgs,
	RunE: runSenders,
}

func init() {
	sendersCmd.Flags().BoolVar(&sendersAll, "all", false, "List every sender instead of the first max_senders")
	rootCmd.AddCommand(sendersCmd)
}

func runSenders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, verbose)

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

	out := cmd.OutOrStdout()
	limit := cfg.MaxSenders
	if sendersAll {
		limit = res.Senders.Len()
	}
	selection, err := sweep.SelectTop(res.Senders, limit)
	if err != nil {
		fmt.Fprintln(out, "No promotional senders found.")
		return nil
	}
	printSenders(out, res.Senders, selection)
	if len(selection) < res.Senders.Len() {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("... %d more (use --all)", res.Senders.Len()-len(selection))))
	}
	return nil
}

func printSenders(w io.Writer, senders *sweep.Senders, emails []string) {
	for _, email := range emails {
		if s, ok := senders.Get(email); ok {
			fmt.Fprintln(w, s.Label())
		}
	}
}
