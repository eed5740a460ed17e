// Package main provides the pubs CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	// envFile overrides the .env file read before the environment
	envFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	os.Exit(ExitSuccess)
}

var rootCmd = &cobra.Command{
	Use:   "pubs",
	Short: "Publication catalog query and ingestion tool",
	Long: `pubs manages a catalog of scientific publications tagged by project and
site. It stores records in MongoDB (DB_URL=mongodb://...) or an embedded
SQLite file (DB_URL=sqlite://path). All commands output JSON by default;
pass --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file read before the environment (default .env)")
	rootCmd.Version = Version
}
