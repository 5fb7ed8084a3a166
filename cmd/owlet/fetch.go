package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/ui"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [table]",
	Short: "Fetch entity tables into the local cache",
	Long: `Fetch one table, or every table when none is named.

Offline, fetch serves the last persisted snapshot and succeeds; online, it
re-pulls the full table from the remote service and replaces the cache.

Tables: lessons, sections, questions, questionlogs, lessonlogs, gamescores,
sessions.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(true)
		defer app.close()

		runStoreOp(app, args, func(s cache.Syncable) {
			s.Fetch(context.Background())
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [table]",
	Short: "Force a full re-pull of entity tables",
	Long: `Re-pull one table, or every table when none is named, regardless of
what is cached. A refresh while offline fails and leaves the store in the
error state; the cached rows keep serving.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(true)
		defer app.close()

		if !app.oracle.IsOnline() {
			fmt.Printf("%s Remote service unreachable, refresh will not converge\n", ui.RenderWarn("⚠"))
		}

		runStoreOp(app, args, func(s cache.Syncable) {
			s.Refresh(context.Background())
		})
	},
}

// runStoreOp applies op to the named store, or to all of them, then prints
// one result line per store.
func runStoreOp(app *app, args []string, op func(cache.Syncable)) {
	targets := app.stores.All()
	if len(args) == 1 {
		store, ok := app.stores.ByName(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown table %q\n", args[0])
			os.Exit(1)
		}
		targets = []cache.Syncable{store}
	}

	for _, store := range targets {
		op(store)
		printStoreLine(store)
	}
}

// printStoreLine renders one status line for a store.
func printStoreLine(s cache.Syncable) {
	glyph := ui.RenderPass("✓")
	detail := fmt.Sprintf("%d rows", s.Count())

	switch s.Status() {
	case cache.StatusError:
		glyph = ui.RenderErr("✗")
		detail = s.Err()
	case cache.StatusLoading, cache.StatusSyncing:
		glyph = ui.RenderWarn("…")
	}

	if t := s.LastSyncedAt(); t != nil && s.Status() != cache.StatusError {
		detail += ui.RenderMuted(fmt.Sprintf("  (synced %s)", t.Format("2006-01-02 15:04:05")))
	}

	fmt.Printf("%s %-14s %s\n", glyph, ui.RenderAccent(s.Name()), detail)
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(refreshCmd)
}
