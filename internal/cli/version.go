package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/midishelf/pkg/midishelf"
)

const modulePath = "github.com/mesh-intelligence/midishelf"

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the shelf version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version": midishelf.Version,
					"module":  modulePath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shelf v%s\nmodule: %s\n", midishelf.Version, modulePath)
			return nil
		},
	}
}
