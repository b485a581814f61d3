// Package cmd holds the askpath command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "askpath",
	Short: "AskPath - layered answer backend for support chatbots",
	Long: `AskPath answers user questions through a three-tier cascade:
a curated decision graph, an FAQ table, and retrieval-augmented
generation over indexed documents. Running askpath without a
subcommand starts the HTTP API server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
