package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"promosweep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
	Long: `Manage promosweep configuration.

Settings come from, highest priority first: command-line flags, environment
variables (PROMOSWEEP_<KEY>, or MAX_SENDERS, SCOPES, CREDENTIALS_FILE and
TOKEN_FILE), the YAML config file, then built-in defaults. A .env file in the
working directory is loaded into the environment first.

Examples:
  promosweep config show    # Print the effective configuration
  promosweep config init    # Write the defaults to the config file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.Path()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, mutedStyle.Render("# config file: "+path))
	_, err = out.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	written, err := config.WriteDefault(path)
	if err != nil {
		return err
	}
	if !written {
		fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}
