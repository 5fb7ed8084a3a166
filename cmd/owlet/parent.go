package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owlet-labs/owletsync/internal/schema"
	"github.com/owlet-labs/owletsync/internal/ui"
)

var parentCmd = &cobra.Command{
	Use:   "parent",
	Short: "Manage the supervising parent profile",
}

var parentSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save the parent profile",
	Long: `Save the supervising parent profile locally and upsert it remotely
keyed on email, so each address has exactly one remote record.`,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		pin, _ := cmd.Flags().GetString("pin")

		app := mustApp(true)
		defer app.close()

		profile := schema.ParentProfile{Email: email, Name: name, PIN: pin}
		if err := app.registry.SaveProfile(context.Background(), profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Parent profile saved for %s\n", ui.RenderPass("✓"), ui.RenderAccent(email))
	},
}

var parentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved parent profile",
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp(false)
		defer app.close()

		profile, ok, err := app.registry.Profile()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Printf("%s No parent profile saved\n", ui.RenderWarn("⚠"))
			return
		}

		fmt.Printf("Email: %s\n", profile.Email)
		if profile.Name != "" {
			fmt.Printf("Name:  %s\n", profile.Name)
		}
	},
}

func init() {
	parentSetCmd.Flags().String("email", "", "parent email address")
	parentSetCmd.Flags().String("name", "", "display name")
	parentSetCmd.Flags().String("pin", "", "supervision PIN")
	_ = parentSetCmd.MarkFlagRequired("email")

	parentCmd.AddCommand(parentSetCmd)
	parentCmd.AddCommand(parentShowCmd)
	rootCmd.AddCommand(parentCmd)
}
