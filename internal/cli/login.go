package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promosweep/internal/gmail"
	"promosweep/internal/logger"
)

var loginForce bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize promosweep to manage your Gmail account",
	Long: `Obtain and cache an OAuth token. A cached token is reused or refreshed;
--force always runs the browser consent flow again.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Ignore the cached token and authorize again")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, verbose)
	ctx := cmd.Context()

	a, err := newAuthenticator(cfg, log)
	if err != nil {
		return err
	}
	if loginForce {
		if _, err := a.Reauthorize(ctx); err != nil {
			return err
		}
	}
	hc, err := a.HTTPClient(ctx)
	if err != nil {
		return err
	}
	client, err := gmail.NewClient(ctx, hc)
	if err != nil {
		return err
	}
	address, err := client.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Authenticated as %s (token cached in %s)\n",
		successStyle.Render("✓"), address, cfg.TokenFile)
	return nil
}
