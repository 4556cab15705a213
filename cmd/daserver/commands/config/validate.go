package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/daserver/internal/cli/output"
	"github.com/marmos91/daserver/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a daserver configuration file.

Checks for syntax errors, out-of-range values and inconsistent settings.

Examples:
  # Validate the default config
  daserver config validate

  # Validate a specific file
  daserver config validate --config /etc/daserver/config.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.API.IsEnabled() && !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - operator routes are unauthenticated")
	}
	if cfg.Control.HonorShutdownRequest && cfg.API.IsEnabled() && !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "any API client can stop the process through "+cfg.Control.Item)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.PrintKeyValues(out, [][2]string{
		{"Refresh period", cfg.Refresh.Period.String()},
		{"Signal interval", cfg.Refresh.SignalInterval.String()},
		{"Population grace", cfg.Shutdown.PopulationGrace.String()},
		{"Refresh grace", cfg.Shutdown.RefreshGrace.String()},
		{"API port", apiPort(cfg)},
		{"Log level", cfg.Logging.Level},
	})
}

func apiPort(cfg *config.Config) string {
	if !cfg.API.IsEnabled() {
		return "disabled"
	}
	return fmt.Sprintf("%d", cfg.API.Port)
}
