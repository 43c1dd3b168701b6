package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "featurebot",
	Short: "featurebot is a feature-rich chat bot for Telegram and Discord",
	Long: `featurebot is a single-process chat bot. It receives messages from one
messaging platform (Telegram by default, or Discord), dispatches them to a fixed
set of commands (/start, /help, /time, /weather, /joke, /calc, /info) and replies
with formatted text and inline buttons. Plain text is echoed with analysis, and
photos and documents are answered with their metadata.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(versionCmd)
}
