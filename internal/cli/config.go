package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trajgroups/pkg/config"
)

// configCommand creates the config inspection command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Long: `Print the effective configuration as TOML.

The output combines the built-in defaults, the config file and any
TRAJGROUPS_* environment overrides. It can be saved as a starting point
for a config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.config().Write(cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the default config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.DefaultPath())
			return nil
		},
	})

	return cmd
}
