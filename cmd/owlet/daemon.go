package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/owlet-labs/owletsync/internal/config"
	"github.com/owlet-labs/owletsync/internal/daemon"
	"github.com/owlet-labs/owletsync/internal/realtime"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon (foreground)",
	Long: `Keep the local cache continuously in sync.

The daemon will:
  1. Probe the remote service for reachability
  2. Fetch every table on startup and on every reconnect
  3. Subscribe to the change feed and re-pull tables on notifications
  4. Periodically refresh every table while online

With hub_port configured it also serves its own change-feed hub at
ws://localhost:<port>/ws for other local consumers.

Runs in the foreground; press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(false)
		defer app.close()

		logger := daemon.NewLogger(app.cfg.LogFile)

		var hub *realtime.Hub
		if app.cfg.HubPort > 0 {
			hub = realtime.NewHub(&realtime.HubConfig{Port: app.cfg.HubPort, Logger: logger})
		}

		d := daemon.New(app.stores, app.oracle, app.feed, hub, &daemon.Config{
			RefreshInterval: app.cfg.RefreshInterval,
			Logger:          logger,
		})

		// Hot reload only logs for now; URL and interval changes need a
		// restart to take effect.
		app.loader.Watch(func(c config.Config) {
			logger.Printf("Config file changed; restart to apply remote_url/interval changes")
		})

		fmt.Printf("Syncing %s into %s\n", app.cfg.RemoteURL, app.cfg.DBPath())
		if hub != nil {
			fmt.Printf("Hub: ws://localhost:%d/ws\n", app.cfg.HubPort)
		}
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
