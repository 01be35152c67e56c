package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "adsim",
		Short: "Deterministic ad campaign simulator",
		Long: `adsim simulates multi-day search advertising campaigns from seeded
scenarios: keyword auctions, budget pacing, fatigue and intent drift, with a
causal layer that explains why each day's metrics moved.`,
	}

	rootCmd.PersistentFlags().String("config", "config/config.yaml", "Path to config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
