package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dwbuild/internal/snowflake"
	"dwbuild/internal/ui"
	"dwbuild/internal/warehouse"
)

func newBuildCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and publish the warehouse tables",
		Long: `Reads the relational and spreadsheet extracts, builds dim_customers,
dim_employees, dim_temps and fact_orders, and publishes them to the output
directory. Missing extracts are treated as empty; unreadable extracts abort
the run and leave previously published tables untouched.`,
		Example: `  dwbuild build
  dwbuild build --relational-dir raw/sql --spreadsheet-dir raw/excel --output-dir out
  DWBUILD_WAREHOUSE_DSN=postgres://localhost/dw dwbuild build --load`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, map[string]string{
				"sources.relational.dir":  "relational-dir",
				"sources.spreadsheet.dir": "spreadsheet-dir",
				"output.dir":              "output-dir",
				"warehouse.enabled":       "load",
			})
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			builder := warehouse.NewBuilder(cfg, logger)

			if cfg.Warehouse.Enabled {
				service := snowflake.NewService(snowflake.ConfigFrom(cfg.Warehouse), logger)
				defer service.Close()
				builder.WithLoader(service)
				ui.ShowInfo(fmt.Sprintf("Tables will also be loaded into the %s warehouse", service.Driver()))
			}

			report, err := builder.Build(cmd.Context())
			if report != nil {
				ui.ShowHeader("Build report")
				ui.RenderReport(cmd.OutOrStdout(), report)
				if n := report.MissingInputs(); n > 0 {
					ui.ShowWarning(fmt.Sprintf("%d extract(s) missing, built from the remaining sources", n))
				}
				if n := report.AttributeConflicts(); n > 0 {
					ui.ShowWarning(fmt.Sprintf("%d duplicate(s) disagreed on descriptive attributes", n))
				}
			}
			if err != nil {
				return err
			}

			ui.ShowSuccess(fmt.Sprintf("Published %d tables to %s", len(report.Published), cfg.Output.Dir))
			return nil
		},
	}

	cmd.Flags().String("relational-dir", "", "directory holding the relational extracts")
	cmd.Flags().String("spreadsheet-dir", "", "directory holding the spreadsheet extracts")
	cmd.Flags().StringP("output-dir", "o", "", "directory the warehouse tables are published to")
	cmd.Flags().Bool("load", false, "also load the tables into the configured SQL warehouse")
	return cmd
}
