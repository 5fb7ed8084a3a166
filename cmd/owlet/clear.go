package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owlet-labs/owletsync/internal/ui"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every cached table and the saved profiles",
	Long: `Reset the local cache to empty: every entity table, the parent
profile, and any active session. Used on account sign-out. The remote
service is not touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(false)
		defer app.close()

		app.stores.ClearAll()
		if err := app.registry.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing parent profile: %v\n", err)
			os.Exit(1)
		}
		app.manager.ResetSession()
		if err := app.saveSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing session state: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Local cache cleared\n", ui.RenderPass("✓"))
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
