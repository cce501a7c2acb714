// Package main is the entry point for rampartctl, the offline companion
// tool for the rampart SQL gateway. It validates and normalizes queries
// against a policy without touching a database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "rampartctl",
	Short:         "Validate SQL queries against rampart guardrails",
	Long:          `rampartctl runs the rampart validation pipeline offline: it classifies, validates, and normalizes SQL statements against a policy without connecting to a database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
