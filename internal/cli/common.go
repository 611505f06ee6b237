package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"promosweep/internal/auth"
	"promosweep/internal/config"
	"promosweep/internal/gmail"
	"promosweep/internal/logger"
	"promosweep/internal/store"
	"promosweep/internal/sweep"
)

// consentWait bounds how long the loopback server waits for the browser
// redirect before asking for a pasted code.
const consentWait = 2 * time.Minute

// session is everything a command needs once the user is authenticated.
type session struct {
	cfg     *config.Config
	log     logger.Logger
	client  *gmail.Client
	exec    *sweep.Executor
	runner  *sweep.Runner
	journal *store.SQLiteStore // nil when the journal could not be opened
}

func (s *session) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cfgFile, cmd.Flags())
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func newAuthenticator(cfg *config.Config, log logger.Logger) (*auth.Authenticator, error) {
	oauthCfg, err := auth.ConfigFromFile(cfg.CredentialsFile, cfg.Scopes)
	if err != nil {
		return nil, err
	}
	consent := auth.TerminalConsent(os.Stdin, os.Stderr, consentWait)
	return auth.NewAuthenticator(oauthCfg, auth.NewFileStore(cfg.TokenFile), consent, log), nil
}

// connect authenticates and wires the Gmail client, executor, runner and
// journal. A journal that cannot be opened only disables history.
func connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*session, error) {
	a, err := newAuthenticator(cfg, log)
	if err != nil {
		return nil, err
	}
	hc, err := a.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	client, err := gmail.NewClient(ctx, hc)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, log: log, client: client}
	s.exec = sweep.NewExecutor(client, executorOptions(cfg), log)

	journal, err := store.NewSQLiteStore(cfg.JournalDB)
	if err != nil {
		log.Warn(fmt.Sprintf("Journal disabled, history will not be recorded: %v", err))
		s.runner = sweep.NewRunner(s.exec, nil, log)
	} else {
		s.journal = journal
		s.runner = sweep.NewRunner(s.exec, journal, log)
	}
	return s, nil
}

func scanOptions(cfg *config.Config, log logger.Logger) sweep.AggregateOptions {
	return sweep.AggregateOptions{
		LabelIDs:          []string{cfg.Label},
		PageSize:          cfg.PageSize,
		AbortOnFetchError: cfg.AbortOnFetchError,
		Log:               log,
	}
}

func executorOptions(cfg *config.Config) sweep.ExecutorOptions {
	opts := sweep.DefaultExecutorOptions()
	opts.Category = labelQuery(cfg.Label)
	opts.RemoveLabelIDs = []string{gmail.LabelInbox}
	if cfg.Label != gmail.LabelInbox {
		opts.RemoveLabelIDs = append(opts.RemoveLabelIDs, cfg.Label)
	}
	opts.PageSize = cfg.PageSize
	opts.BatchSize = cfg.BatchSize
	opts.UnsubscribeTimeout = cfg.UnsubscribeTimeout
	return opts
}

// labelQuery turns a label ID into the search term matching it:
// CATEGORY_PROMOTIONS -> category:promotions, anything else -> label:<id>.
func labelQuery(label string) string {
	if rest, ok := strings.CutPrefix(label, "CATEGORY_"); ok {
		return "category:" + strings.ToLower(rest)
	}
	return "label:" + strings.ToLower(label)
}

// scan aggregates senders, logging progress per page.
func scan(ctx context.Context, s *session) (*sweep.AggregateResult, error) {
	opts := scanOptions(s.cfg, s.log)
	opts.Progress = func(p sweep.AggregateProgress) {
		s.log.Debug(fmt.Sprintf("Scanned %d messages (%d pages, %d skipped)", p.Scanned, p.Pages, p.Skipped))
	}
	s.log.Info(fmt.Sprintf("Scanning %s...", s.cfg.Label))
	return sweep.Aggregate(ctx, s.client, opts)
}
