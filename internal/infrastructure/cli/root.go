package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "margin",
	Version: Version,
	Short:   "AI editorial review for block-structured documents",
	Long: `Margin reviews block-structured documents with an AI provider and
stores the feedback as threaded margin notes.
1. Ingest a document (a JSON file of content blocks).
2. Run a review; feedback lands as notes anchored to blocks.
3. Reply, revise, and run a follow-up review that skips what you fixed.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}
