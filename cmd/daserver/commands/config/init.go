package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/daserver/pkg/api"
	"github.com/marmos91/daserver/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with defaults",
	Long: `Create a daserver configuration file holding the defaults and a freshly
generated API signing secret.

By default the file is created at $XDG_CONFIG_HOME/daserver/config.yaml.
Use --config to choose another path.

Examples:
  # Initialize at the default location
  daserver config init

  # Initialize at a custom path
  daserver config init --config /etc/daserver/config.yaml

  # Overwrite an existing file
  daserver config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	var (
		configPath string
		err        error
	)
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to tune refresh and shutdown timing")
	_, _ = fmt.Fprintf(out, "  2. Start the server with: daserver start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nSecurity note:")
	_, _ = fmt.Fprintln(out, "  A random JWT secret has been written to the file for development use.")
	_, _ = fmt.Fprintln(out, "  In production, provide it through the environment instead:")
	_, _ = fmt.Fprintf(out, "    export %s=$(openssl rand -hex 32)\n", api.EnvJWTSecret)
	return nil
}
