// Package commands implements the sessiond command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Sample HTTP service backed by distributed session state",
	Long: `sessiond serves a small demo application whose per-client state lives in
a session cache. The cache backend is chosen with --backend or SESSION_BACKEND:
memory, redis, postgres, mongo or badger. Backend settings come from the
environment or a .env file in the working directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("sessiond %s (%s)\n", Version, Commit)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func unknownBackend(name string) error {
	return fmt.Errorf("unknown backend %q (want %s, %s, %s, %s or %s)",
		name, backendMemory, backendRedis, backendPostgres, backendMongo, backendBadger)
}
