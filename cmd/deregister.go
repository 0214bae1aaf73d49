package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal/identity"
	"github.com/chukul/capsulectl/internal/ui"
)

var deregisterYes bool

func init() {
	deregisterCmd.Flags().BoolVarP(&deregisterYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(deregisterCmd)
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister <user>",
	Short: "Delete a user with all of its access keys and policies",
	Long: `Delete an IAM user created by capsulectl. Access keys and inline policies
are removed first and managed policies detached, then the user itself.
Runs with the operator credentials from --profile or the default chain.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p := ui.NewTerminalPrompter()

		if !deregisterYes {
			ok, err := p.Confirm(fmt.Sprintf("⚠️  Delete user %s and everything attached to it?", name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("❌ Operation cancelled.")
				return nil
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		id, err := a.identityManager(cmd.Context())
		if err != nil {
			return err
		}

		_, err = ui.Busy(cmd.Context(), p, "Deleting user "+name+"...", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, id.Deregister(ctx, name)
		})
		if err != nil {
			return err
		}
		fmt.Printf("✅ Deleted user %s.\n", name)

		// Drop the saved session if it belonged to this user.
		if saved, err := a.store.Describe(); err == nil && saved.Principal == name {
			if err := a.store.Remove(); err != nil && !errors.Is(err, identity.ErrNoSavedSession) {
				return err
			}
			fmt.Println("✅ Removed the saved session.")
		}
		return nil
	},
}
