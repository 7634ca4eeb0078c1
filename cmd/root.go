package cmd

import (
	"github.com/spf13/cobra"

	"github.com/studymesh/ale/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ale",
	Short: "Adaptive learning engine",
	Long:  "ale — spaced-repetition quiz engine with adaptive mastery tracking.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ALE_DB env var)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(advisorCmd)
	rootCmd.AddCommand(prereqCmd)
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then ALE_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
