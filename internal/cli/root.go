package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"promosweep/internal/auth"
	"promosweep/internal/config"
	"promosweep/internal/logger"
	"promosweep/internal/tui"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "promosweep",
	Short: "Unsubscribe from and delete Gmail promotions, sender by sender",
	Long: `promosweep scans the Promotions category of a Gmail account, groups the
messages by sender and lets you act on the senders you pick:

  unsubscribe and delete  follow the List-Unsubscribe header, then trash
                          every promotion from the sender
  filter and delete       add a filter sending future mail to the trash,
                          then trash every promotion from the sender

Running 'promosweep' with no subcommand opens the interactive selector.

Examples:
  promosweep                          # Pick senders interactively
  promosweep senders --all            # List every promotional sender
  promosweep batch --action filter    # Filter the top max_senders senders`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			fmt.Fprintf(os.Stderr, "Authentication failed: %v\nRun 'promosweep login' to authorize again.\n", authErr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is <user config dir>/promosweep/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	pf.Int("max-senders", config.DefaultMaxSenders, "Maximum number of senders offered or processed")
	pf.String("credentials-file", "", "OAuth client secret JSON downloaded from Google Cloud")
	pf.String("token-file", "", "Where the OAuth token is cached")
	pf.String("label", config.DefaultLabel, "Label scanned for senders")
	pf.Int64("page-size", config.DefaultPageSize, "Messages per list request (1-500)")
	pf.Int("batch-size", config.DefaultBatchSize, "Message IDs per batch modify request (1-1000)")
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := openLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logger.New(logFile, verbose)

	ctx := cmd.Context()
	s, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	appModel := tui.NewAppModel(ctx, s.client, s.runner, tui.Options{
		MaxSenders: cfg.MaxSenders,
		Scan:       scanOptions(cfg, log),
	})
	p := tea.NewProgram(&appModel, tea.WithAltScreen())
	appModel.SetProgram(p)
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
		return m.Err
	}
	return nil
}
