package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owlet-labs/owletsync/internal/schema"
	"github.com/owlet-labs/owletsync/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the active child session",
	Long: `Track one child activity session at a time.

A session starts with a child and an activity, and closes into an immutable
record in the sessions cache. Records for remote-shaped child ids mirror to
the remote service when online; purely-local child profiles accumulate
history without touching the network.`,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session for a child",
	Long: `Start a session. If one is already in progress it is closed out as
stalled and recorded before the new one begins.

Activities: auth, lesson, quiz, game.`,
	Run: func(cmd *cobra.Command, args []string) {
		childID, _ := cmd.Flags().GetString("child")
		activity, _ := cmd.Flags().GetString("activity")

		if childID == "" {
			fmt.Fprintf(os.Stderr, "Error: --child is required\n")
			os.Exit(1)
		}
		kind := schema.ActivityKind(activity)
		switch kind {
		case schema.ActivityAuth, schema.ActivityLesson, schema.ActivityQuiz, schema.ActivityGame:
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown activity %q\n", activity)
			os.Exit(1)
		}

		app := mustApp(true)
		defer app.close()

		app.manager.StartChildSession(schema.NewChildID(childID), kind)
		if err := app.saveSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session state: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Started %s session for child %s\n",
			ui.RenderPass("✓"), ui.RenderAccent(string(kind)), childID)
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active session",
	Long: `Close the active session into a completed record. Without an active
session this is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(true)
		defer app.close()

		child, kind, active := app.manager.Current()
		app.manager.EndSession()
		if err := app.saveSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session state: %v\n", err)
			os.Exit(1)
		}

		if !active {
			fmt.Printf("%s No active session\n", ui.RenderWarn("⚠"))
			return
		}
		fmt.Printf("%s Ended %s session for child %s (%d sessions recorded)\n",
			ui.RenderPass("✓"), kind, child, app.stores.Sessions.Count())
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Abandon the active session without recording it",
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(false)
		defer app.close()

		app.manager.ResetSession()
		if err := app.saveSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session state: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Session discarded\n", ui.RenderPass("✓"))
	},
}

func init() {
	sessionStartCmd.Flags().String("child", "", "child profile id")
	sessionStartCmd.Flags().String("activity", "lesson", "activity kind (auth|lesson|quiz|game)")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}
