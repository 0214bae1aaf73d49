package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/config"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the saved session file",
	Long:  "Delete the saved session file. The access keys themselves stay valid on AWS until the user is deleted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store := internal.NewFileStore(cfg.CredentialsFile, "")
		err = store.Remove()
		if errors.Is(err, internal.ErrNoStoredSession) {
			fmt.Println("❌ No saved session found.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", store.Path, err)
		}

		fmt.Printf("✅ Logged out. Removed %s\n", store.Path)
		return nil
	},
}
