package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCommand reports the linker-injected version and build date.
func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dolphinwatch version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "dolphinwatch %s (built %s)\n", version, buildDate)
			return nil
		},
	}
}
