// Package cmd contains the briefing CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Briefing answers questions over your documents",
	Long: `Briefing is a conversation engine for document question answering.
It routes each question to plain chat, retrieval-augmented search, or
multi-document summarisation, and streams the answer with citations.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
