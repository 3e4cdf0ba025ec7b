// Package cmd implements the dolphinwatch command-line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// buildDate and version are overridable at link time via
// -ldflags "-X github.com/tphakala/dolphinwatch/cmd.version=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

// RootCommand builds the dolphinwatch root command and wires the run,
// test-trigger, and version subcommands onto it.
func RootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dolphinwatch",
		Short: "Real-time dolphin echolocation detector",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (optional)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable verbose/trace logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("cmd: binding debug flag: %v", err))
	}

	rootCmd.AddCommand(
		runCommand(&configPath),
		testTriggerCommand(&configPath),
		versionCommand(),
	)

	return rootCmd
}
