package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/mia/cmd/cli/commands"
	"github.com/inferloop/mia/pkg/constants"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	globals := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Membership inference attacks against synthetic data generators",
		Long: `A command-line interface for evaluating the privacy of synthetic data
generators with targeted membership inference attacks.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&globals.ConfigFile, "config", "", "config file (default is $HOME/.mia/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(commands.NewEvaluateCmd(globals))
	rootCmd.AddCommand(commands.NewSubsetsCmd(globals))
	rootCmd.AddCommand(commands.NewInspectCmd(globals))
	rootCmd.AddCommand(commands.NewDatasetsCmd(globals))

	return rootCmd
}
