package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/owlet-labs/owletsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and connectivity status",
	Long: `Display the state of the local cache without touching the remote
service beyond a single reachability probe.

Shows:
  - Remote service reachability
  - Cache database location
  - Per-table row counts and last sync times
  - The active session, if one is in progress`,
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(true)
		defer app.close()

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Owlet Cache Status"))

		if app.oracle.IsOnline() {
			fmt.Printf("Remote:   %s (%s)\n", ui.RenderPass("reachable"), app.cfg.RemoteURL)
		} else {
			fmt.Printf("Remote:   %s (%s)\n", ui.RenderWarn("unreachable"), app.cfg.RemoteURL)
		}
		fmt.Printf("Cache:    %s\n\n", app.cfg.DBPath())

		for _, store := range app.stores.All() {
			printStoreLine(store)
		}

		fmt.Println()
		if child, kind, active := app.manager.Current(); active {
			fmt.Printf("Session:  %s %s for child %s\n\n",
				ui.RenderAccent("active"), kind, child)
		} else {
			fmt.Printf("Session:  %s\n\n", ui.RenderMuted("none"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
