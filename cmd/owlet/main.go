// Command owlet is the CLI for the Owlet local-first sync engine.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "owlet",
	Short: "Local-first sync engine for the Owlet learning app",
	Long: `owlet keeps a local cache of the Owlet learning data (lessons, sections,
questions, activity logs, game scores, sessions) in sync with the remote
service.

Reads are always served from the local cache; the cache re-pulls from the
remote service when online and whenever the change feed signals an update.
Writes apply locally first and mirror to the remote service on a best-effort
basis.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./owlet.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
