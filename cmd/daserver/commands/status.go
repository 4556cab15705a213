package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/daserver/internal/cli/output"
	"github.com/marmos91/daserver/internal/cli/healthcheck"
	"github.com/marmos91/daserver/internal/logger"
)

var (
	statusOutput  string
	statusAPIURL  string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the status of a running daserver.

The command calls the liveness, readiness and status endpoints of the
operator API and reports whether population has completed.

Examples:
  # Check a local server
  daserver status

  # Check a remote server as JSON
  daserver status --api-url http://plant-sim:8080 --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAPIURL, "api-url", "http://localhost:8080", "Base URL of the operator API")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 2*time.Second, "Request timeout")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	report := healthcheck.NewClient(statusAPIURL, statusTimeout).Check(cmd.Context())

	if format != output.FormatTable {
		return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(report)
	}
	printStatusTable(cmd, report)
	return nil
}

func printStatusTable(cmd *cobra.Command, r healthcheck.Report) {
	p := output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, isTerminal(cmd))

	switch {
	case r.Ready:
		p.Success(r.Message)
	case r.Reachable:
		p.Warning(r.Message)
	default:
		p.Error(r.Message)
		return
	}

	pairs := [][2]string{{"State", r.State}}
	if r.StartedAt != "" {
		pairs = append(pairs, [2]string{"Started", r.StartedAt})
	}
	if r.Uptime != "" {
		pairs = append(pairs, [2]string{"Uptime", healthcheck.FormatUptime(r.Uptime)})
	}
	pairs = append(pairs,
		[2]string{"Items", strconv.Itoa(r.Items)},
		[2]string{"Active conditions", strconv.Itoa(r.Active)},
	)
	_, _ = fmt.Fprintln(p.Writer())
	_ = output.PrintKeyValues(p.Writer(), pairs)
}

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && logger.IsTerminal(f)
}
