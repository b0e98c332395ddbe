package cmd

import (
	"github.com/spf13/cobra"

	"dwbuild/internal/ui"
	"dwbuild/internal/warehouse"
)

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var requireFacts bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show what a published warehouse contains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, map[string]string{"output.dir": "output-dir"})
			if err != nil {
				return err
			}

			ins, err := warehouse.Inspect(cfg.Output)
			if err != nil {
				return err
			}
			ui.ShowHeader("Warehouse " + cfg.Output.Dir)
			ui.RenderInspection(cmd.OutOrStdout(), ins)

			if requireFacts {
				return ins.RequireFacts()
			}
			return nil
		},
	}

	cmd.Flags().StringP("output-dir", "o", "", "directory the warehouse tables were published to")
	cmd.Flags().BoolVar(&requireFacts, "require-facts", false, "fail when the fact table is missing or empty")
	return cmd
}
