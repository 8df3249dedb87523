// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slidetrans",
	Short: "SlideTrans is the backend service of the presentation translation platform",
	Long: `SlideTrans is the backend service of the presentation translation platform.
It serves the REST API for accounts and registration approval, the translation
glossary, stop words, file uploads, ingredient reference data and log
administration.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
