package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dwbuild/internal/config"
	"dwbuild/internal/ui"
	"dwbuild/pkg/errors"
)

func newInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Exists(path) && !force {
				return errors.New(errors.ErrCodeConfigInvalid, "Config file already exists").
					WithContext("path", path).
					WithSuggestions("Pass --force to overwrite it")
			}

			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			ui.ShowSuccess(fmt.Sprintf("Wrote %s", path))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", config.FileName+".yaml", "where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
