package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/daserver/internal/cli/output"
	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/population"
)

var (
	catalogOutput     string
	catalogMassLoops  int
	catalogItemPrefix string
	catalogTimeout    time.Duration
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the sample address space",
	Long: `Build the sample address space in-process and print part of it.

No server needs to be running. The event catalog, area tree and item set are
the same ones 'daserver start' creates.

Examples:
  # List the area tree
  daserver catalog areas

  # List condition instances as JSON
  daserver catalog conditions -o json

  # List the simulated items
  daserver catalog items --prefix SimulatedData`,
}

func init() {
	catalogCmd.PersistentFlags().StringVarP(&catalogOutput, "output", "o", "table", "Output format (table|json|yaml)")
	catalogCmd.PersistentFlags().IntVar(&catalogMassLoops, "mass-loops", 1, "Number of MassItems batches to build")
	catalogCmd.PersistentFlags().DurationVar(&catalogTimeout, "timeout", time.Minute, "Population timeout")
	catalogItemsCmd.Flags().StringVar(&catalogItemPrefix, "prefix", "", "Only list items whose path starts with this prefix")

	catalogCmd.AddCommand(catalogAreasCmd, catalogSourcesCmd, catalogConditionsCmd, catalogItemsCmd)
}

var catalogAreasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List process areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd, func(p *output.Printer, core *lifecycle.ServerCore) error {
			model := core.Model()
			areas := model.Areas()
			table := output.NewTable("ID", "PATH", "PARENT", "SOURCES")
			for _, a := range areas {
				path, err := model.AreaPath(a.ID)
				if err != nil {
					return err
				}
				table.AddRow(a.ID.String(), strings.Join(path, "/"), a.Parent.String(), strconv.Itoa(len(a.Sources)))
			}
			return p.PrintAs(areas, table)
		})
	},
}

var catalogSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List event sources and the areas they belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd, func(p *output.Printer, core *lifecycle.ServerCore) error {
			sources, err := listSources(core.Model())
			if err != nil {
				return err
			}
			table := output.NewTable("ID", "NAME", "SHARED", "AREAS")
			for _, s := range sources {
				areas := make([]string, len(s.Areas))
				for i, a := range s.Areas {
					areas[i] = a.String()
				}
				table.AddRow(s.ID.String(), s.Name, strconv.FormatBool(s.Shared), strings.Join(areas, ","))
			}
			return p.PrintAs(sources, table)
		})
	},
}

var catalogConditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "List condition instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd, func(p *output.Printer, core *lifecycle.ServerCore) error {
			model := core.Model()
			conds := model.Conditions()
			table := output.NewTable("ID", "SOURCE", "DEFINITION", "SEVERITY", "ACTIVE", "MESSAGE")
			for _, c := range conds {
				source := c.Source.String()
				if s, err := model.Source(c.Source); err == nil {
					source = s.Name
				}
				def := c.Definition.String()
				if d, err := model.Definition(c.Definition); err == nil {
					def = d.Name
				}
				table.AddRow(c.ID.String(), source, def, strconv.FormatUint(uint64(c.Severity), 10),
					strconv.FormatBool(c.Active), c.Message)
			}
			return p.PrintAs(conds, table)
		})
	},
}

var catalogItemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List items of the address space",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd, func(p *output.Printer, core *lifecycle.ServerCore) error {
			infos := core.Items().List(catalogItemPrefix)
			table := output.NewTable("HANDLE", "PATH", "TYPE", "ACCESS", "LENGTH")
			for _, info := range infos {
				length := "-"
				if info.Length >= 0 {
					length = strconv.Itoa(info.Length)
				}
				table.AddRow(strconv.FormatUint(uint64(info.Handle), 10), info.Path,
					info.Type.String(), info.Access.String(), length)
			}
			return p.PrintAs(infos, table)
		})
	},
}

func runCatalog(cmd *cobra.Command, print func(*output.Printer, *lifecycle.ServerCore) error) error {
	format, err := output.ParseFormat(catalogOutput)
	if err != nil {
		return err
	}
	if catalogMassLoops < 0 {
		return fmt.Errorf("--mass-loops must not be negative")
	}

	// Population logs at info level; keep stdout for the listing.
	if err := logger.Init(logger.Config{Level: "ERROR", Format: "text", Output: "stderr"}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), catalogTimeout)
	defer cancel()

	core, err := buildCatalog(ctx, catalogMassLoops)
	if err != nil {
		return err
	}
	return print(output.NewPrinter(cmd.OutOrStdout(), format, false), core)
}

// buildCatalog runs the sample population plan against a fresh core and
// waits for it to finish. The refresh engine is not started.
func buildCatalog(ctx context.Context, massLoops int) (*lifecycle.ServerCore, error) {
	cfg := population.DefaultConfig()
	cfg.MassItemLoops = massLoops
	cfg.BatchDelay = 0

	core := lifecycle.NewCore(items.NewStore(), alarms.NewModel())
	ctrl := lifecycle.NewController(core, population.Sample(cfg), nil, lifecycle.Config{})
	if err := ctrl.Start(ctx); err != nil {
		return nil, err
	}
	defer ctrl.Stop()

	state, err := ctrl.WaitSettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("population did not finish: %w", err)
	}
	if state != lifecycle.StateRunning {
		return nil, fmt.Errorf("population ended in state %s", state)
	}
	return core, nil
}

// listSources collects every source reachable from the area tree, root
// included, once each, ordered by id.
func listSources(model *alarms.Model) ([]alarms.Source, error) {
	areas := []alarms.AreaID{alarms.RootArea}
	for _, a := range model.Areas() {
		areas = append(areas, a.ID)
	}

	seen := make(map[alarms.SourceID]bool)
	var out []alarms.Source
	for _, id := range areas {
		sources, err := model.SourcesInArea(id)
		if err != nil {
			return nil, err
		}
		for _, s := range sources {
			if !seen[s.ID] {
				seen[s.ID] = true
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
